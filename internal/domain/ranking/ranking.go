// Package ranking scores, orders, searches and filters blog articles.
//
// A Ranker is safe for concurrent use. The only state it carries is the
// jitter source, which is guarded by a mutex.
package ranking

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/okian/medblog/internal/domain/model"
)

// Scoring weights.
const (
	featuredBonus      = 200
	viewWeight         = 0.2
	charsPerPoint      = 50
	maxContentPoints   = 100
	recencyWindowDays  = 50
	categoryBonus      = 30
	pointsPerTag       = 8
	pointsPerAuthorArt = 2
	maxAuthorPoints    = 40
	excerptBonus       = 15
	imageBonus         = 20

	hoursPerDay = 24

	defaultJitterMax  = 5
	defaultRandomSeed = 42
)

// Source yields uniformly distributed values in [0, 1).
type Source interface {
	Float64() float64
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithJitterMax sets the upper bound of the random addend. Zero makes scores
// fully deterministic.
func WithJitterMax(limit float64) Option {
	return func(r *Ranker) {
		if limit >= 0 {
			r.jitterMax = limit
		}
	}
}

// WithSeed seeds the default jitter source.
func WithSeed(seed int64) Option {
	return func(r *Ranker) {
		r.src = rand.New(rand.NewSource(seed)) //nolint:gosec // jitter only, not security relevant
	}
}

// WithJitterSource replaces the jitter source.
func WithJitterSource(src Source) Option {
	return func(r *Ranker) {
		if src != nil {
			r.src = src
		}
	}
}

// Ranker computes article scores and the ordered feed.
type Ranker struct {
	jitterMax float64

	mu  sync.Mutex
	src Source
}

// NewRanker creates a ranker with a seeded jitter source.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		jitterMax: defaultJitterMax,
		src:       rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible ordering
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JitterMax returns the configured jitter bound.
func (r *Ranker) JitterMax() float64 { return r.jitterMax }

// BaseScore returns the unrounded score of a without jitter.
func BaseScore(a model.Article, now time.Time) float64 {
	score := 0.0
	if a.Featured {
		score += featuredBonus
	}
	score += float64(a.Views) * viewWeight
	score += math.Min(float64(utf8.RuneCountInString(a.Content))/charsPerPoint, maxContentPoints)
	score += recency(a.CreatedAt, now)
	if strings.TrimSpace(a.Category) != "" {
		score += categoryBonus
	}
	score += float64(len(a.Tags) * pointsPerTag)
	if a.Author != nil && a.Author.BlogCount != nil {
		score += math.Min(float64(*a.Author.BlogCount*pointsPerAuthorArt), maxAuthorPoints)
	}
	if strings.TrimSpace(a.Excerpt) != "" {
		score += excerptBonus
	}
	if strings.TrimSpace(a.FeaturedImage) != "" {
		score += imageBonus
	}
	return score
}

// recency decays linearly from 50 to 0 over the window. A zero createdAt is
// infinitely old and a future one counts as brand new.
func recency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	days := now.Sub(createdAt).Hours() / hoursPerDay
	if days < 0 {
		days = 0
	}
	return math.Max(0, recencyWindowDays-days)
}

// BaseScore returns the unrounded score of a without jitter.
func (r *Ranker) BaseScore(a model.Article, now time.Time) float64 {
	return BaseScore(a, now)
}

// Score returns the rounded score of a, jitter included.
func (r *Ranker) Score(a model.Article, now time.Time) int {
	return int(math.Round(BaseScore(a, now) + r.jitter()))
}

func (r *Ranker) jitter() float64 {
	if r.jitterMax == 0 {
		return 0
	}
	r.mu.Lock()
	v := r.src.Float64()
	r.mu.Unlock()
	// Clamp a misbehaving source to [0, 1).
	if v < 0 || v >= 1 || math.IsNaN(v) {
		v = 0
	}
	return v * r.jitterMax
}

// Rank scores every article and returns them ordered by score descending,
// then newest first, then by id. Ranks are contiguous from 1.
func (r *Ranker) Rank(articles []model.Article, now time.Time) []model.RankedArticle {
	out := make([]model.RankedArticle, len(articles))
	for i, a := range articles {
		out[i] = model.RankedArticle{Score: r.Score(a, now), Article: a.Clone()}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Article.CreatedAt.Equal(b.Article.CreatedAt) {
			return a.Article.CreatedAt.After(b.Article.CreatedAt)
		}
		return a.Article.ID < b.Article.ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Search returns the articles whose title, content, category or excerpt
// contains query, case-insensitively, in input order. A blank query matches
// nothing.
func Search(articles []model.Article, query string) []model.Article {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.Article{}
	}
	out := make([]model.Article, 0)
	for _, a := range articles {
		if matches(a, q) {
			out = append(out, a)
		}
	}
	return out
}

func matches(a model.Article, q string) bool {
	for _, field := range []string{a.Title, a.Content, a.Category, a.Excerpt} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// FilterByCategory returns the articles in category, compared
// case-insensitively. "All" returns the input unchanged.
func FilterByCategory(articles []model.Article, category string) []model.Article {
	if category == model.CategoryAll {
		return articles
	}
	out := make([]model.Article, 0)
	if category == "" {
		return out
	}
	for _, a := range articles {
		if a.Category != "" && strings.EqualFold(a.Category, category) {
			out = append(out, a)
		}
	}
	return out
}

// Search is the method form of Search.
func (r *Ranker) Search(articles []model.Article, query string) []model.Article {
	return Search(articles, query)
}

// FilterByCategory is the method form of FilterByCategory.
func (r *Ranker) FilterByCategory(articles []model.Article, category string) []model.Article {
	return FilterByCategory(articles, category)
}
