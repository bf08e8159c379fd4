package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/medblog/internal/adapters/repository"
	"github.com/okian/medblog/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)

func newMemory() *repository.MemoryStore {
	n := 0
	return repository.NewMemoryStore(
		repository.WithClock(func() time.Time { return fixedNow }),
		repository.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		s := newMemory()

		Convey("When creating an article with only a title", func() {
			a, err := s.Create(ctx, model.Article{Title: "Diabetes Care"})

			Convey("Then server-side fields should be filled in", func() {
				So(err, ShouldBeNil)
				So(a.ID, ShouldEqual, "id-1")
				So(a.Slug, ShouldEqual, "diabetes-care")
				So(a.Status, ShouldEqual, model.StatusPublished)
				So(a.CreatedAt, ShouldEqual, fixedNow)
				So(a.UpdatedAt, ShouldEqual, fixedNow)
				So(a.Tags, ShouldNotBeNil)
			})

			Convey("And a second article with the same slug should conflict", func() {
				_, err := s.Create(ctx, model.Article{Title: "Diabetes  care"})
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When the title is blank", func() {
			_, err := s.Create(ctx, model.Article{Title: "  "})
			So(errors.Is(err, repository.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the status is unknown", func() {
			_, err := s.Create(ctx, model.Article{Title: "x", Status: "archived"})
			So(errors.Is(err, repository.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the caller supplies id and creation time", func() {
			created := fixedNow.AddDate(0, 0, -3)
			a, err := s.Create(ctx, model.Article{ID: "fixed", Title: "Sleep", CreatedAt: created})

			Convey("Then they should be kept", func() {
				So(err, ShouldBeNil)
				So(a.ID, ShouldEqual, "fixed")
				So(a.CreatedAt, ShouldEqual, created)
			})

			Convey("And reusing the id should conflict", func() {
				_, err := s.Create(ctx, model.Article{ID: "fixed", Title: "Other"})
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreReadWrite(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with articles by two authors", t, func() {
		s := newMemory()
		alice := &model.Author{ID: "u-alice", Name: "Alice"}
		bob := &model.Author{ID: "u-bob", Name: "Bob"}
		a1, _ := s.Create(ctx, model.Article{Title: "One", Author: alice, Category: "Nutrition"})
		_, _ = s.Create(ctx, model.Article{Title: "Two", Author: bob})
		_, _ = s.Create(ctx, model.Article{Title: "Three", Author: alice})
		_, _ = s.Create(ctx, model.Article{Title: "Four"})

		Convey("When listing", func() {
			list, err := s.List(ctx)

			Convey("Then articles should come back in insertion order with blog counts", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 4)
				So(list[0].Title, ShouldEqual, "One")
				So(list[3].Title, ShouldEqual, "Four")
				So(*list[0].Author.BlogCount, ShouldEqual, 2)
				So(*list[1].Author.BlogCount, ShouldEqual, 1)
				So(list[3].Author, ShouldBeNil)
			})

			Convey("And mutating the result should not touch the store", func() {
				list[0].Title = "changed"
				got, _ := s.Get(ctx, a1.ID)
				So(got.Title, ShouldEqual, "One")
			})
		})

		Convey("When fetching by id and slug", func() {
			byID, err := s.Get(ctx, a1.ID)
			So(err, ShouldBeNil)
			So(*byID.Author.BlogCount, ShouldEqual, 2)

			bySlug, err := s.GetBySlug(ctx, "one")
			So(err, ShouldBeNil)
			So(bySlug.ID, ShouldEqual, a1.ID)

			_, err = s.Get(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = s.GetBySlug(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When incrementing views", func() {
			So(s.IncrementViews(ctx, a1.ID, 3), ShouldBeNil)
			So(s.IncrementViews(ctx, a1.ID, 2), ShouldBeNil)
			got, _ := s.Get(ctx, a1.ID)
			So(got.Views, ShouldEqual, 5)

			So(errors.Is(s.IncrementViews(ctx, a1.ID, -1), repository.ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(s.IncrementViews(ctx, "missing", 1), repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When updating", func() {
			_ = s.IncrementViews(ctx, a1.ID, 7)
			upd, err := s.Update(ctx, model.Article{
				ID: a1.ID, Title: "One, revised", Slug: "one-revised", Views: 0,
				CreatedAt: fixedNow.AddDate(1, 0, 0), Featured: true,
			})

			Convey("Then editable fields change and history is kept", func() {
				So(err, ShouldBeNil)
				So(upd.Title, ShouldEqual, "One, revised")
				So(upd.Featured, ShouldBeTrue)
				So(upd.Views, ShouldEqual, 7)
				So(upd.CreatedAt, ShouldEqual, a1.CreatedAt)
				So(upd.Author.ID, ShouldEqual, "u-alice")
			})

			Convey("And the slug index should follow", func() {
				_, err := s.GetBySlug(ctx, "one")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				got, err := s.GetBySlug(ctx, "one-revised")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, a1.ID)
			})
		})

		Convey("When updating to a slug owned by another article", func() {
			_, err := s.Update(ctx, model.Article{ID: a1.ID, Title: "One", Slug: "two"})
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
		})

		Convey("When updating an unknown article", func() {
			_, err := s.Update(ctx, model.Article{ID: "missing", Title: "x"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When deleting", func() {
			So(s.Delete(ctx, a1.ID), ShouldBeNil)
			n, _ := s.Count(ctx)
			So(n, ShouldEqual, 3)
			list, _ := s.List(ctx)
			So(list[0].Title, ShouldEqual, "Two")
			So(*list[1].Author.BlogCount, ShouldEqual, 1)
			So(errors.Is(s.Delete(ctx, a1.ID), repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store drivers", t, func() {
		Convey("Then memory should be the default", func() {
			s, err := repository.Open(context.Background(), "", "")
			So(err, ShouldBeNil)
			So(s, ShouldHaveSameTypeAs, &repository.MemoryStore{})
			So(s.Close(), ShouldBeNil)
		})

		Convey("Then unknown drivers should be rejected", func() {
			_, err := repository.Open(context.Background(), "mongo", "")
			So(errors.Is(err, repository.ErrUnknownStore), ShouldBeTrue)
		})
	})
}
