// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the article store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	// StoreDSN is passed to the SQL driver.
	StoreDSN string `koanf:"store_dsn"`

	// RedisAddr enables the feed cache when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	// FeedCacheTTLSec is the cached feed lifetime; 0 disables caching.
	FeedCacheTTLSec int `koanf:"feed_cache_ttl_sec"`

	// QueueSize bounds the in-memory view queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of view workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the viewer/article dedupe set.
	DedupeSize int `koanf:"dedupe_size"`

	// JitterMax is the upper bound of the random score addend; 0 disables it.
	JitterMax float64 `koanf:"jitter_max"`
	// JitterSeed seeds the jitter source.
	JitterSeed int64 `koanf:"jitter_seed"`
	// MaxFeedLimit caps GET /articles?limit.
	MaxFeedLimit int `koanf:"max_feed_limit"`

	// JWTSecret signs CMS bearer tokens. Write endpoints are disabled when empty.
	JWTSecret string `koanf:"jwt_secret"`

	// AssistantURL is the external chat endpoint; empty disables the assistant.
	AssistantURL       string `koanf:"assistant_url"`
	AssistantTimeoutMS int    `koanf:"assistant_timeout_ms"`

	// FeedRefreshSchedule is a cron spec for warming the feed cache; empty disables it.
	FeedRefreshSchedule string `koanf:"feed_refresh_schedule"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreDriver:         "memory",
		RedisDB:             0,
		FeedCacheTTLSec:     30,
		QueueSize:           10_000,
		WorkerCount:         4,
		DedupeSize:          100_000,
		JitterMax:           5,
		JitterSeed:          42,
		MaxFeedLimit:        100,
		AssistantTimeoutMS:  15_000,
		FeedRefreshSchedule: "@every 1m",
	}
}

// FeedCacheTTL returns the cache lifetime as a duration.
func (c *Config) FeedCacheTTL() time.Duration {
	return time.Duration(c.FeedCacheTTLSec) * time.Second
}

// AssistantTimeout returns the assistant timeout as a duration.
func (c *Config) AssistantTimeout() time.Duration {
	return time.Duration(c.AssistantTimeoutMS) * time.Millisecond
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case "memory":
	case "sqlite", "postgres":
		if c.StoreDSN == "" {
			return fmt.Errorf("store_dsn is required for %s: %w", c.StoreDriver, ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown store_driver %q: %w", c.StoreDriver, ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q: %w", c.LogFormat, ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive: %w", ErrInvalidConfig)
	}
	if c.JitterMax < 0 {
		return fmt.Errorf("jitter_max must not be negative: %w", ErrInvalidConfig)
	}
	if c.MaxFeedLimit <= 0 {
		return fmt.Errorf("max_feed_limit must be positive: %w", ErrInvalidConfig)
	}
	if c.FeedCacheTTLSec < 0 || c.AssistantTimeoutMS < 0 {
		return fmt.Errorf("durations must not be negative: %w", ErrInvalidConfig)
	}
	if c.FeedRefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.FeedRefreshSchedule); err != nil {
			return fmt.Errorf("feed_refresh_schedule %q: %v: %w", c.FeedRefreshSchedule, err, ErrInvalidConfig)
		}
	}
	return nil
}
