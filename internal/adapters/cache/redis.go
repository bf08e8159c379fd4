package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/pkg/logger"
)

const (
	defaultPrefix     = "medblog:feed:"
	generationKey     = "gen"
	healthCheckWait   = 2 * time.Second
	defaultPoolSize   = 10
	defaultMinIdle    = 2
	defaultMaxRetries = 3
	defaultDialWait   = 5 * time.Second
	defaultIOWait     = 3 * time.Second
)

// NewRedisClient builds a client and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     defaultPoolSize,
		MinIdleConns: defaultMinIdle,
		MaxRetries:   defaultMaxRetries,
		DialTimeout:  defaultDialWait,
		ReadTimeout:  defaultIOWait,
		WriteTimeout: defaultIOWait,
	})
	pingCtx, cancel := context.WithTimeout(ctx, healthCheckWait)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %v: %w", addr, err, ErrUnavailable)
	}
	return client, nil
}

// Option applies a configuration option to the RedisFeedCache.
type Option func(*RedisFeedCache)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *RedisFeedCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *RedisFeedCache) {
		if l != nil {
			c.log = l
		}
	}
}

// RedisFeedCache stores feeds as JSON under <prefix><generation>:<key>.
// Invalidate bumps the generation so old entries are never read again and
// expire on their own TTL.
type RedisFeedCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// NewRedisFeedCache creates a cache over client. Entries live for ttl.
func NewRedisFeedCache(client redis.UniversalClient, ttl time.Duration, opts ...Option) *RedisFeedCache {
	c := &RedisFeedCache{
		client: client,
		ttl:    ttl,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("feed-cache")
	}
	return c
}

// Generation returns the current generation, "0" before the first Invalidate.
func (c *RedisFeedCache) Generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, c.prefix+generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("read generation: %w", err)
	}
	return gen, nil
}

func (c *RedisFeedCache) key(gen, key string) string {
	return c.prefix + gen + ":" + key
}

// Get reads the feed stored for key in generation gen.
func (c *RedisFeedCache) Get(ctx context.Context, gen, key string) ([]model.RankedArticle, bool, error) {
	raw, err := c.client.Get(ctx, c.key(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get feed %s: %w", key, err)
	}
	var feed []model.RankedArticle
	if err := json.Unmarshal(raw, &feed); err != nil {
		c.log.Warn(ctx, "dropping corrupt feed entry", logger.String("key", key), logger.Error(err))
		_ = c.client.Del(ctx, c.key(gen, key)).Err()
		return nil, false, fmt.Errorf("decode feed %s: %w", key, ErrCorrupt)
	}
	return feed, true, nil
}

// Set stores feed for key in generation gen. Writes to a stale generation
// are never read back.
func (c *RedisFeedCache) Set(ctx context.Context, gen, key string, feed []model.RankedArticle) error {
	raw, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("encode feed %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(gen, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set feed %s: %w", key, err)
	}
	return nil
}

func (c *RedisFeedCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, c.prefix+generationKey).Result()
	if err != nil {
		return fmt.Errorf("bump generation: %w", err)
	}
	c.log.Debug(ctx, "feed cache invalidated", logger.Int64("generation", gen))
	return nil
}
