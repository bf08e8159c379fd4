package api

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestArticleRequestValidate(t *testing.T) {
	Convey("Given an article request", t, func() {
		req := articleRequest{Title: "Allergy Season", Tags: []string{"allergy"}}

		Convey("When it is minimal and valid", func() {
			Convey("Then validation passes", func() {
				So(req.Validate(), ShouldBeNil)
			})
		})

		Convey("When the slug is not kebab case", func() {
			req.Slug = "Allergy Season!"

			Convey("Then validation fails on slug", func() {
				err := req.Validate()
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "slug")
			})
		})

		Convey("When there are too many tags", func() {
			req.Tags = strings.Split(strings.Repeat("t,", maxTags+1)+"t", ",")

			Convey("Then validation fails on tags", func() {
				So(req.Validate(), ShouldNotBeNil)
			})
		})

		Convey("When a tag is blank", func() {
			req.Tags = []string{"ok", ""}

			Convey("Then validation fails on tags", func() {
				So(req.Validate(), ShouldNotBeNil)
			})
		})

		Convey("When the timestamp is malformed", func() {
			req.CreatedAt = "yesterday"

			Convey("Then validation fails on createdAt", func() {
				err := req.Validate()
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "createdAt")
			})
		})

		Convey("When converted to a model", func() {
			featured := true
			req.Title = "  Allergy Season  "
			req.Featured = &featured
			req.CreatedAt = "2025-01-02T03:04:05Z"
			req.Author = &authorRequest{ID: "a1", Name: "Dr. A"}
			m := req.toModel()

			Convey("Then fields are trimmed and parsed", func() {
				So(m.Title, ShouldEqual, "Allergy Season")
				So(m.Featured, ShouldBeTrue)
				So(m.CreatedAt, ShouldEqual, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
				So(m.AuthorID(), ShouldEqual, "a1")
			})
		})
	})
}

func TestParseFeedQuery(t *testing.T) {
	Convey("Given feed query strings", t, func() {
		Convey("When the query is empty", func() {
			q, err := parseFeedQuery(httptest.NewRequest("GET", "/articles", nil), 10)

			Convey("Then defaults are used", func() {
				So(err, ShouldBeNil)
				So(q.Category, ShouldEqual, "")
				So(q.Limit, ShouldEqual, 0)
			})
		})

		Convey("When a category and limit are given", func() {
			q, err := parseFeedQuery(httptest.NewRequest("GET", "/articles?category=%20Nutrition%20&limit=10", nil), 10)

			Convey("Then they are parsed", func() {
				So(err, ShouldBeNil)
				So(q.Category, ShouldEqual, "Nutrition")
				So(q.Limit, ShouldEqual, 10)
			})
		})

		Convey("When the limit exceeds the maximum", func() {
			_, err := parseFeedQuery(httptest.NewRequest("GET", "/articles?limit=11", nil), 10)

			Convey("Then it is a bad request", func() {
				So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			})
		})
	})
}

func TestViewerID(t *testing.T) {
	Convey("Given anonymous requests", t, func() {
		Convey("When a viewer header is present", func() {
			r := httptest.NewRequest("GET", "/articles/x", nil)
			r.Header.Set(viewerIDHeader, "device-42")

			Convey("Then it identifies the viewer", func() {
				So(viewerID(r), ShouldEqual, "anon:device-42")
			})
		})

		Convey("When only the remote address is known", func() {
			r := httptest.NewRequest("GET", "/articles/x", nil)
			r.RemoteAddr = "10.1.2.3:5555"

			Convey("Then the host is used", func() {
				So(viewerID(r), ShouldEqual, "ip:10.1.2.3")
			})
		})
	})
}

func TestGetErrorType(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		cases := []struct {
			code int
			want string
		}{
			{500, "server_error"},
			{429, "rate_limit"},
			{404, "not_found"},
			{401, "auth"},
			{403, "auth"},
			{400, "client_error"},
			{200, "unknown"},
		}
		for _, c := range cases {
			So(getErrorType(c.code), ShouldEqual, c.want)
		}
	})
}
