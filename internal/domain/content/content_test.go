package content_test

import (
	"strings"
	"testing"

	"github.com/okian/medblog/internal/domain/content"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSlugify(t *testing.T) {
	Convey("Given article titles", t, func() {
		cases := map[string]string{
			"Diabetes Care":               "diabetes-care",
			"  Café Nutrition: 5 Tips!  ": "cafe-nutrition-5-tips",
			"Heart -- health / Basics":    "heart-health-basics",
			"Ünïcödé  Tïtle":              "unicode-title",
			"???":                         "",
		}

		Convey("Then each should slugify to lower-case ascii", func() {
			for in, want := range cases {
				So(content.Slugify(in), ShouldEqual, want)
			}
		})
	})
}

func TestPlainText(t *testing.T) {
	Convey("Given an HTML body", t, func() {
		body := `<h1>Sleep</h1><p>Rest   well.</p><script>var x = 1;</script><ul><li>Dark room</li></ul>`

		Convey("Then markup and scripts should be stripped", func() {
			So(content.PlainText(body), ShouldEqual, "Sleep Rest well. Dark room")
		})
	})

	Convey("Given a plain-text body", t, func() {
		Convey("Then it should pass through with spacing collapsed", func() {
			So(content.PlainText("just\n  some   text"), ShouldEqual, "just some text")
		})
	})
}

func TestReadingMinutes(t *testing.T) {
	Convey("Given bodies of different lengths", t, func() {
		Convey("When the body is empty", func() {
			So(content.ReadingMinutes(""), ShouldEqual, 0)
		})

		Convey("When the body is short", func() {
			So(content.ReadingMinutes("<p>two words</p>"), ShouldEqual, 1)
		})

		Convey("When the body has 401 words", func() {
			body := "<p>" + strings.TrimSpace(strings.Repeat("word ", 401)) + "</p>"
			So(content.WordCount(body), ShouldEqual, 401)
			So(content.ReadingMinutes(body), ShouldEqual, 3)
		})
	})
}
