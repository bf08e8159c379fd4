package seed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/medblog/internal/adapters/http/api"
	service "github.com/okian/medblog/internal/app"
	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/pkg/auth"
	"github.com/okian/medblog/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func ranked(scores ...int) []model.RankedArticle {
	out := make([]model.RankedArticle, len(scores))
	for i, s := range scores {
		out[i] = model.RankedArticle{Rank: i + 1, Score: s, Article: model.Article{ID: string(rune('a' + i))}}
	}
	return out
}

func TestVerifyFeed(t *testing.T) {
	Convey("Given ranked feeds", t, func() {
		Convey("When ranks are contiguous and scores descend", func() {
			Convey("Then the feed verifies", func() {
				So(verifyFeed(ranked(90, 80, 80, 10), []string{"a", "d"}), ShouldBeNil)
				So(verifyFeed(nil, nil), ShouldBeNil)
			})
		})

		Convey("When a rank is skipped", func() {
			feed := ranked(90, 80)
			feed[1].Rank = 3

			Convey("Then verification fails", func() {
				So(errors.Is(verifyFeed(feed, nil), ErrVerification), ShouldBeTrue)
			})
		})

		Convey("When a score increases", func() {
			Convey("Then verification fails", func() {
				So(errors.Is(verifyFeed(ranked(10, 20), nil), ErrVerification), ShouldBeTrue)
			})
		})

		Convey("When a seeded article is missing", func() {
			Convey("Then verification fails", func() {
				So(errors.Is(verifyFeed(ranked(10), []string{"z"}), ErrVerification), ShouldBeTrue)
			})
		})
	})
}

func TestGenerateArticles(t *testing.T) {
	Convey("Given a generator seed", t, func() {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		a := generateArticles(30, 7, now)
		b := generateArticles(30, 7, now)

		Convey("Then runs are reproducible apart from image ids", func() {
			So(len(a), ShouldEqual, 30)
			for i := range a {
				So(a[i].Title, ShouldEqual, b[i].Title)
				So(a[i].Category, ShouldEqual, b[i].Category)
				So(a[i].Tags, ShouldResemble, b[i].Tags)
			}
		})

		Convey("And titles are unique and articles are published in the past", func() {
			seen := map[string]bool{}
			for _, in := range a {
				So(seen[in.Title], ShouldBeFalse)
				seen[in.Title] = true
				So(in.Status, ShouldEqual, model.StatusPublished)
				So(model.ParseTimestamp(in.CreatedAt).After(now), ShouldBeFalse)
				So(len(in.Tags), ShouldBeLessThanOrEqualTo, maxTagsPerPost)
			}
		})
	})
}

func TestRunAgainstServer(t *testing.T) {
	Convey("Given a running medblog server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		mgr, err := auth.NewManager("seed-secret")
		So(err, ShouldBeNil)
		token, err := mgr.Issue("seed-admin", "Seeder", model.RoleAdmin, time.Hour)
		So(err, ShouldBeNil)

		mux := http.NewServeMux()
		api.NewServer(svc, svc, api.WithAuth(mgr)).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		Reset(srv.Close)

		Convey("When the seeder runs", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:     srv.URL,
				Token:       token,
				NumArticles: 12,
				NumViewers:  3,
				Workers:     4,
				Timeout:     5 * time.Second,
				DrainWait:   5 * time.Second,
				Seed:        1,
			})

			Convey("Then every article is created and the feed verifies", func() {
				So(err, ShouldBeNil)
				So(stats.ArticlesCreated.Load(), ShouldEqual, 12)
				So(stats.ViewsSent.Load(), ShouldEqual, 12*4)
				So(stats.ViewsCounted.Load(), ShouldEqual, 12*3)
				So(stats.FeedEntries, ShouldEqual, 12)
			})
		})

		Convey("When the token is missing", func() {
			_, err := Run(ctx, &Config{
				BaseURL: srv.URL, NumArticles: 2, Workers: 1,
				Timeout: time.Second, DrainWait: time.Second,
			})

			Convey("Then no article can be created", func() {
				So(errors.Is(err, ErrStatus), ShouldBeTrue)
			})
		})
	})
}
