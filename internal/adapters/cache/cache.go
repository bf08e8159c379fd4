// Package cache keeps ranked feeds between requests.
package cache

import (
	"context"

	"github.com/okian/medblog/internal/domain/model"
)

// FeedCache stores ranked feeds by key within a generation. A miss is
// reported with ok=false and a nil error.
//
// Callers read Generation before taking the snapshot they rank and pass it to
// Set, so a feed computed across an Invalidate lands in a dead generation.
type FeedCache interface {
	// Generation returns the current cache generation.
	Generation(ctx context.Context) (string, error)
	Get(ctx context.Context, gen, key string) (feed []model.RankedArticle, ok bool, err error)
	Set(ctx context.Context, gen, key string, feed []model.RankedArticle) error
	// Invalidate starts a new generation, dropping every cached feed.
	Invalidate(ctx context.Context) error
}

// NopFeedCache never stores anything.
type NopFeedCache struct{}

func (NopFeedCache) Generation(context.Context) (string, error) { return "0", nil }

func (NopFeedCache) Get(context.Context, string, string) ([]model.RankedArticle, bool, error) {
	return nil, false, nil
}

func (NopFeedCache) Set(context.Context, string, string, []model.RankedArticle) error { return nil }

func (NopFeedCache) Invalidate(context.Context) error { return nil }
