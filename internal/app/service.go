// Package service provides the core content service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/medblog/internal/adapters/assistant"
	"github.com/okian/medblog/internal/adapters/cache"
	eventqueue "github.com/okian/medblog/internal/adapters/mq/queue"
	workerpool "github.com/okian/medblog/internal/adapters/mq/worker"
	"github.com/okian/medblog/internal/adapters/repository"
	"github.com/okian/medblog/internal/domain/dedupe"
	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/internal/domain/ranking"
	"github.com/okian/medblog/pkg/logger"
	"github.com/okian/medblog/pkg/metrics"
)

const (
	defaultQueueSize  = 10000
	defaultDedupeSize = 100000
	defaultTopN       = 5

	allFeedKey      = "all"
	categoryFeedKey = "category:"
)

// Actor is the authenticated caller of a CMS operation.
type Actor struct {
	UserID string
	Name   string
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

func (a Actor) canWrite() error {
	if a.UserID == "" || a.Role == "" {
		return ErrUnauthorized
	}
	switch a.Role {
	case model.RoleAdmin, model.RoleBlogger:
		return nil
	default:
		return fmt.Errorf("role %q cannot write articles: %w", a.Role, ErrForbidden)
	}
}

func (a Actor) canEdit(existing model.Article) error {
	if err := a.canWrite(); err != nil {
		return err
	}
	if a.IsAdmin() || existing.AuthorID() == a.UserID {
		return nil
	}
	return fmt.Errorf("article %s belongs to another author: %w", existing.ID, ErrForbidden)
}

// Service implements the API dependencies for the content platform.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ranker     *ranking.Ranker
	feedCache  cache.FeedCache
	assistant  *assistant.Client
	deduper    dedupe.Deduper
	viewQueue  eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	now         func() time.Time

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the article store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRanker sets the article ranker.
func WithRanker(r *ranking.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithFeedCache sets the ranked feed cache.
func WithFeedCache(c cache.FeedCache) Option {
	return func(s *Service) {
		if c != nil {
			s.feedCache = c
		}
	}
}

// WithAssistant sets the chat assistant client.
func WithAssistant(c *assistant.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.assistant = c
		}
	}
}

// WithClock overrides the time source used for ranking and view events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWorkerCount sets the number of view workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the view queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many viewer/article pairs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a service. Components that need goroutines are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.ranker == nil {
		s.ranker = ranking.NewRanker()
	}
	if s.feedCache == nil {
		s.feedCache = cache.NopFeedCache{}
	}
	if s.assistant == nil {
		s.assistant = assistant.NewClient("")
	}
	return s
}

// Start builds the view pipeline and launches its workers. Cancelling ctx
// does not stop the workers; call Stop so queued views are applied first.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.viewQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.viewQueue, s.store)
	// Workers outlive ctx; Stop closes the queue and waits for the drain.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "content service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the view queue and waits for the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping content service...")

	err := s.workerPool.Shutdown(ctx)
	s.started = false
	if err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}
	s.logger.Info(ctx, "content service stopped")
	return nil
}

func (s *Service) pipeline() (dedupe.Deduper, eventqueue.Queue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper, s.viewQueue, s.started
}

func feedKey(category string) string {
	if category == model.CategoryAll {
		return allFeedKey
	}
	return categoryFeedKey + strings.ToLower(category)
}

func isPublic(a model.Article) bool {
	return a.Status == "" || a.Status == model.StatusPublished
}

func (s *Service) published(ctx context.Context) ([]model.Article, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	out := make([]model.Article, 0, len(all))
	for _, a := range all {
		if isPublic(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) rankFeed(ctx context.Context, category string) ([]model.RankedArticle, error) {
	articles, err := s.published(ctx)
	if err != nil {
		return nil, err
	}
	filtered := s.ranker.FilterByCategory(articles, category)

	start := time.Now()
	ranked := s.ranker.Rank(filtered, s.now())
	metrics.RecordRank(len(ranked), float64(time.Since(start).Microseconds())/1000)
	return ranked, nil
}

func truncate(feed []model.RankedArticle, limit int) []model.RankedArticle {
	if limit > 0 && limit < len(feed) {
		return feed[:limit]
	}
	return feed
}

// Feed returns the ranked public feed for category ("" or "All" for every
// category), truncated to limit entries when limit > 0.
func (s *Service) Feed(ctx context.Context, category string, limit int) ([]model.RankedArticle, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, ErrInvalidInput)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = model.CategoryAll
	}
	key := feedKey(category)
	metrics.RecordCategoryFilter(key)

	// The generation is pinned before the store snapshot is taken.
	gen, err := s.feedCache.Generation(ctx)
	if err != nil {
		metrics.RecordCacheError()
		s.log().Warn(ctx, "feed cache generation read failed", logger.String("key", key), logger.Error(err))
		feed, err := s.rankFeed(ctx, category)
		if err != nil {
			return nil, err
		}
		return truncate(feed, limit), nil
	}

	cached, ok, err := s.feedCache.Get(ctx, gen, key)
	switch {
	case err != nil:
		metrics.RecordCacheError()
		s.log().Warn(ctx, "feed cache read failed", logger.String("key", key), logger.Error(err))
	case ok:
		metrics.RecordCacheHit()
		return truncate(cached, limit), nil
	default:
		metrics.RecordCacheMiss()
	}

	feed, err := s.rankFeed(ctx, category)
	if err != nil {
		return nil, err
	}
	if err := s.feedCache.Set(ctx, gen, key, feed); err != nil {
		metrics.RecordCacheError()
		s.log().Warn(ctx, "feed cache write failed", logger.String("key", key), logger.Error(err))
	}
	return truncate(feed, limit), nil
}

// Search returns public articles matching query in insertion order.
func (s *Service) Search(ctx context.Context, query string) ([]model.Article, error) {
	articles, err := s.published(ctx)
	if err != nil {
		return nil, err
	}
	found := s.ranker.Search(articles, query)
	metrics.RecordSearch(len(found))
	return found, nil
}

// Article fetches an article by id, falling back to its slug.
func (s *Service) Article(ctx context.Context, idOrSlug string) (model.Article, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return model.Article{}, fmt.Errorf("empty article id: %w", ErrInvalidInput)
	}
	a, err := s.store.Get(ctx, idOrSlug)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Article{}, fmt.Errorf("get article: %w", err)
	}
	a, err = s.store.GetBySlug(ctx, idOrSlug)
	if err != nil {
		return model.Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

// RecordView queues one view of articleID by viewerID. A repeated view by
// the same viewer reports false without error. An empty viewerID skips dedupe.
func (s *Service) RecordView(ctx context.Context, articleID, viewerID string) (bool, error) {
	deduper, queue, started := s.pipeline()
	if !started {
		return false, ErrNotStarted
	}
	if articleID == "" {
		return false, fmt.Errorf("empty article id: %w", ErrInvalidInput)
	}

	key := dedupe.ViewKey(viewerID, articleID)
	if viewerID != "" && deduper.SeenAndRecord(ctx, key) {
		metrics.RecordViewDuplicate()
		return false, nil
	}

	ev := model.ViewEvent{ArticleID: articleID, ViewerID: viewerID, TS: s.now()}
	if !queue.Enqueue(ctx, ev) {
		if viewerID != "" {
			deduper.Unrecord(ctx, key)
		}
		return false, ErrQueueFull
	}
	return true, nil
}

// CreateArticle stores a new article written by actor. Only admins may mark
// it featured or attribute it to another author.
func (s *Service) CreateArticle(ctx context.Context, actor Actor, in model.Article) (model.Article, error) {
	if err := actor.canWrite(); err != nil {
		return model.Article{}, err
	}
	if in.Featured && !actor.IsAdmin() {
		return model.Article{}, fmt.Errorf("only admins may feature articles: %w", ErrForbidden)
	}

	in = in.Clone()
	in.ID = ""
	in.Views = 0
	if !actor.IsAdmin() || in.AuthorID() == "" {
		in.Author = &model.Author{ID: actor.UserID, Name: actor.Name}
	}
	in.Author.BlogCount = nil

	created, err := s.store.Create(ctx, in)
	if err != nil {
		return model.Article{}, fmt.Errorf("create article: %w", err)
	}
	s.afterWrite(ctx, "create")
	return created, nil
}

// UpdateArticle replaces the editable fields of article id. Bloggers may only
// edit their own articles and may not change the featured flag or author.
func (s *Service) UpdateArticle(ctx context.Context, actor Actor, id string, in model.Article) (model.Article, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Article{}, fmt.Errorf("get article: %w", err)
	}
	if err := actor.canEdit(existing); err != nil {
		return model.Article{}, err
	}

	in = in.Clone()
	if !actor.IsAdmin() {
		if in.Featured != existing.Featured {
			return model.Article{}, fmt.Errorf("only admins may feature articles: %w", ErrForbidden)
		}
		in.Author = nil
	}
	if in.Author != nil {
		in.Author.BlogCount = nil
	}
	in.ID = existing.ID

	updated, err := s.store.Update(ctx, in)
	if err != nil {
		return model.Article{}, fmt.Errorf("update article: %w", err)
	}
	s.afterWrite(ctx, "update")
	return updated, nil
}

// DeleteArticle removes article id.
func (s *Service) DeleteArticle(ctx context.Context, actor Actor, id string) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get article: %w", err)
	}
	if err := actor.canEdit(existing); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	s.afterWrite(ctx, "delete")
	return nil
}

func (s *Service) afterWrite(ctx context.Context, op string) {
	metrics.RecordArticleWrite(op)
	if err := s.feedCache.Invalidate(ctx); err != nil {
		metrics.RecordCacheError()
		s.log().Warn(ctx, "feed cache invalidation failed", logger.String("op", op), logger.Error(err))
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateArticlesTotal(n)
	}
}

// Categories returns the distinct categories of public articles with their
// counts, sorted by name.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	articles, err := s.published(ctx)
	if err != nil {
		return nil, err
	}
	return categoriesOf(articles), nil
}

// categoriesOf groups case-insensitively; the first spelling seen is kept.
func categoriesOf(articles []model.Article) []model.Category {
	index := make(map[string]int)
	out := make([]model.Category, 0)
	for _, a := range articles {
		name := strings.TrimSpace(a.Category)
		if name == "" {
			continue
		}
		k := strings.ToLower(name)
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, model.Category{Name: name, Count: 1})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Analytics summarizes the whole collection, drafts included, with the topN
// most viewed articles.
func (s *Service) Analytics(ctx context.Context, topN int) (model.Analytics, error) {
	if topN <= 0 {
		topN = defaultTopN
	}
	articles, err := s.store.List(ctx)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("list articles: %w", err)
	}

	out := model.Analytics{
		TotalArticles: len(articles),
		Categories:    categoriesOf(articles),
		GeneratedAt:   s.now().UTC(),
	}
	authors := make(map[string]*model.AuthorStats)
	for _, a := range articles {
		if isPublic(a) {
			out.Published++
		} else {
			out.Drafts++
		}
		if a.Featured {
			out.Featured++
		}
		out.TotalViews += a.Views

		id := a.AuthorID()
		if id == "" {
			continue
		}
		st, ok := authors[id]
		if !ok {
			st = &model.AuthorStats{AuthorID: id, Name: a.Author.Name}
			authors[id] = st
		}
		st.Articles++
		st.Views += a.Views
	}

	out.Authors = make([]model.AuthorStats, 0, len(authors))
	for _, st := range authors {
		out.Authors = append(out.Authors, *st)
	}
	sort.Slice(out.Authors, func(i, j int) bool {
		if out.Authors[i].Articles != out.Authors[j].Articles {
			return out.Authors[i].Articles > out.Authors[j].Articles
		}
		return out.Authors[i].AuthorID < out.Authors[j].AuthorID
	})

	top := make([]model.Article, len(articles))
	copy(top, articles)
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Views != top[j].Views {
			return top[i].Views > top[j].Views
		}
		return top[i].CreatedAt.After(top[j].CreatedAt)
	})
	if len(top) > topN {
		top = top[:topN]
	}
	out.TopArticles = top
	return out, nil
}

// RefreshFeed recomputes the default feed and stores it in the cache.
func (s *Service) RefreshFeed(ctx context.Context) error {
	gen, err := s.feedCache.Generation(ctx)
	if err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache generation: %w", err)
	}
	feed, err := s.rankFeed(ctx, model.CategoryAll)
	if err != nil {
		return err
	}
	if err := s.feedCache.Set(ctx, gen, allFeedKey, feed); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache feed: %w", err)
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateArticlesTotal(n)
	}
	s.log().Debug(ctx, "feed refreshed", logger.Int("articles", len(feed)))
	return nil
}

// Ask forwards a chat message to the assistant.
func (s *Service) Ask(ctx context.Context, message string, history []assistant.Message) (string, error) {
	reply, err := s.assistant.Ask(ctx, message, history)
	if err != nil {
		return "", fmt.Errorf("assistant: %w", err)
	}
	return reply, nil
}

// AssistantEnabled reports whether an assistant endpoint is configured.
func (s *Service) AssistantEnabled() bool { return s.assistant.Enabled() }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"jitterMax":        s.ranker.JitterMax(),
		"assistantEnabled": s.assistant.Enabled(),
	}

	if n, err := s.store.Count(ctx); err == nil {
		stats["totalArticles"] = n
		metrics.UpdateArticlesTotal(n)
	}

	if s.started {
		queueLen := s.viewQueue.Len(ctx)
		processed, failed := s.workerPool.Stats()

		stats["queueLength"] = queueLen
		stats["viewsProcessed"] = processed
		stats["viewsFailed"] = failed
		stats["dedupeEntries"] = s.deduper.Size()
		stats["uptimeSec"] = int64(s.now().Sub(s.startedAt).Seconds())

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}

	return stats
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	l := s.logger
	s.mu.RUnlock()
	if l == nil {
		return logger.Named("service")
	}
	return l
}
