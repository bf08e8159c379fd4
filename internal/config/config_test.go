package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/medblog/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.JitterMax, convey.ShouldEqual, 5)
			convey.So(cfg.JitterSeed, convey.ShouldEqual, 42)
			convey.So(cfg.MaxFeedLimit, convey.ShouldEqual, 100)
			convey.So(cfg.FeedCacheTTL(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.AssistantTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "  " }},
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "mongo" }},
			{"sqlite without dsn", func(c *config.Config) { c.StoreDriver = "sqlite" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"negative jitter", func(c *config.Config) { c.JitterMax = -1 }},
			{"zero feed limit", func(c *config.Config) { c.MaxFeedLimit = 0 }},
			{"negative ttl", func(c *config.Config) { c.FeedCacheTTLSec = -1 }},
			{"bad refresh cron", func(c *config.Config) { c.FeedRefreshSchedule = "every now and then" }},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it should be rejected as invalid", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When sqlite has a dsn and the schedule is disabled", func() {
			cfg.StoreDriver = "sqlite"
			cfg.StoreDSN = "file:medblog.db"
			cfg.FeedRefreshSchedule = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
