// Package seed loads sample articles into a running service, drives view
// traffic at it and verifies the ranked feed it serves back.
package seed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/pkg/logger"
)

const (
	drainPollInterval = 100 * time.Millisecond
	viewerIDHeader    = "X-Viewer-ID"
)

// Run executes a complete seeding run.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("seed")
	c := newClient(cfg.BaseURL, cfg.Token, cfg.Timeout)

	log.Info(ctx, "starting medblog seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("articles", cfg.NumArticles),
		logger.Int("viewersPerArticle", cfg.NumViewers),
		logger.Int("workers", cfg.Workers),
	)

	// Step 1: Check service health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK, nil); err != nil {
		return stats, fmt.Errorf("%v: %w", err, ErrUnhealthy)
	}

	// Step 2: Create articles concurrently
	inputs := generateArticles(cfg.NumArticles, cfg.Seed, time.Now())
	ids := createArticles(ctx, c, cfg, inputs, stats, log)
	if len(ids) == 0 && cfg.NumArticles > 0 {
		return stats, fmt.Errorf("no article could be created: %w", ErrStatus)
	}

	// Step 3: Fire anonymous views concurrently; the first viewer reads twice to exercise dedupe
	sendViews(ctx, newClient(cfg.BaseURL, "", cfg.Timeout), cfg, ids, stats, log)

	// Step 4: Wait for the view queue to drain
	if err := waitForDrain(ctx, c, cfg.DrainWait); err != nil {
		log.Warn(ctx, "view queue did not drain", logger.Error(err))
	}

	// Step 5: Fetch and verify the feed
	var feed feedResponse
	if err := c.do(ctx, http.MethodGet, "/articles", nil, nil, http.StatusOK, &feed); err != nil {
		return stats, fmt.Errorf("fetch feed: %w", err)
	}
	stats.FeedEntries = len(feed.Articles)
	if err := verifyFeed(feed.Articles, ids); err != nil {
		return stats, err
	}

	// Step 6: Cross-check applied views through analytics
	if err := waitForViews(ctx, c, stats.ViewsCounted.Load(), cfg.DrainWait); err != nil {
		if !errors.Is(err, ErrStatus) {
			return stats, err
		}
		log.Warn(ctx, "analytics unavailable", logger.Error(err))
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, log, stats, feed.Articles, cfg.Verbose)
	return stats, nil
}

// forEach runs fn for 0..n-1 on up to workers goroutines.
func forEach(ctx context.Context, workers, n int, fn func(i int)) {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

func createArticles(ctx context.Context, c *client, cfg *Config, inputs []articleInput, stats *Stats, log logger.Logger) []string {
	created := make([]string, len(inputs))
	forEach(ctx, cfg.Workers, len(inputs), func(i int) {
		var a model.Article
		if err := c.do(ctx, http.MethodPost, "/articles", inputs[i], nil, http.StatusCreated, &a); err != nil {
			stats.ArticlesFailed.Add(1)
			log.Warn(ctx, "create failed", logger.String("title", inputs[i].Title), logger.Error(err))
			return
		}
		stats.ArticlesCreated.Add(1)
		created[i] = a.ID
		if cfg.Verbose {
			log.Debug(ctx, "article created", logger.String("id", a.ID), logger.String("slug", a.Slug))
		}
	})

	ids := make([]string, 0, len(created))
	for _, id := range created {
		if id != "" {
			ids = append(ids, id)
		}
	}
	log.Info(ctx, "articles created", logger.Int("count", len(ids)))
	return ids
}

type viewJob struct {
	articleID string
	viewerID  string
}

func sendViews(ctx context.Context, c *client, cfg *Config, ids []string, stats *Stats, log logger.Logger) {
	var jobs []viewJob
	for _, id := range ids {
		viewers := viewerIDs(cfg.NumViewers)
		for _, v := range viewers {
			jobs = append(jobs, viewJob{articleID: id, viewerID: v})
		}
		if len(viewers) > 0 {
			jobs = append(jobs, viewJob{articleID: id, viewerID: viewers[0]})
		}
	}

	forEach(ctx, cfg.Workers, len(jobs), func(i int) {
		j := jobs[i]
		stats.ViewsSent.Add(1)
		var resp articleResponse
		h := http.Header{}
		h.Set(viewerIDHeader, j.viewerID)
		if err := c.do(ctx, http.MethodGet, "/articles/"+j.articleID, nil, h, http.StatusOK, &resp); err != nil {
			stats.ViewsFailed.Add(1)
			log.Warn(ctx, "view failed", logger.String("article", j.articleID), logger.Error(err))
			return
		}
		if resp.ViewCounted {
			stats.ViewsCounted.Add(1)
		}
	})
	log.Info(ctx, "views sent",
		logger.Int64("sent", stats.ViewsSent.Load()),
		logger.Int64("counted", stats.ViewsCounted.Load()),
	)
}

// waitForViews polls analytics until at least want views were applied.
func waitForViews(ctx context.Context, c *client, want int64, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		var an model.Analytics
		if err := c.do(ctx, http.MethodGet, "/admin/analytics", nil, nil, http.StatusOK, &an); err != nil {
			return err
		}
		if an.TotalViews >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("analytics reports %d views, %d were accepted: %w", an.TotalViews, want, ErrVerification)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for views: %w", ctx.Err())
		case <-time.After(drainPollInterval):
		}
	}
}

// waitForDrain polls /stats until the view queue is empty or wait elapses.
func waitForDrain(ctx context.Context, c *client, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		var stats map[string]any
		if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, http.StatusOK, &stats); err != nil {
			return err
		}
		if n, ok := stats["queueLength"].(float64); !ok || n == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("queue still has %v events after %s", stats["queueLength"], wait)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for drain: %w", ctx.Err())
		case <-time.After(drainPollInterval):
		}
	}
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, feed []model.RankedArticle, verbose bool) {
	top := 5
	if verbose {
		top = len(feed)
	}
	for i := 0; i < top && i < len(feed); i++ {
		log.Info(ctx, "feed entry",
			logger.Int("rank", feed[i].Rank),
			logger.Int("score", feed[i].Score),
			logger.String("title", feed[i].Article.Title),
			logger.Int64("views", feed[i].Article.Views),
		)
	}
	log.Info(ctx, "final statistics",
		logger.Int64("articlesCreated", stats.ArticlesCreated.Load()),
		logger.Int64("articlesFailed", stats.ArticlesFailed.Load()),
		logger.Int64("viewsSent", stats.ViewsSent.Load()),
		logger.Int64("viewsCounted", stats.ViewsCounted.Load()),
		logger.Int64("viewsFailed", stats.ViewsFailed.Load()),
		logger.Int("feedEntries", stats.FeedEntries),
		logger.Duration("duration", stats.Duration),
	)
}
