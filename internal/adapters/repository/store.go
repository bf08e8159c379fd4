// Package repository stores blog articles in memory or in a SQL database.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/medblog/internal/domain/content"
	"github.com/okian/medblog/internal/domain/model"
)

// Store provides read/write access to articles.
type Store interface {
	// Create stores a new article. Missing id, slug, status and timestamps
	// are filled in. Returns ErrConflict when the id or slug is taken.
	Create(ctx context.Context, a model.Article) (model.Article, error)
	// Get returns the article with id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Article, error)
	// GetBySlug returns the article with slug or ErrNotFound.
	GetBySlug(ctx context.Context, slug string) (model.Article, error)
	// Update replaces the editable fields of an existing article. CreatedAt
	// and Views are kept from the stored record.
	Update(ctx context.Context, a model.Article) (model.Article, error)
	// Delete removes the article with id.
	Delete(ctx context.Context, id string) error
	// List returns every article in insertion order with author blog counts filled in.
	List(ctx context.Context) ([]model.Article, error)
	// IncrementViews adds delta (>= 0) to the view counter.
	IncrementViews(ctx context.Context, id string, delta int64) error
	// Count returns the number of stored articles.
	Count(ctx context.Context) (int, error)
	// Close releases the underlying resources.
	Close() error
}

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func defaultOptions() options {
	return options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// WithClock overrides the clock used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how new article ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func validate(a model.Article) error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("title must not be empty: %w", ErrInvalidInput)
	}
	if a.Views < 0 {
		return fmt.Errorf("views must not be negative: %w", ErrInvalidInput)
	}
	switch a.Status {
	case "", model.StatusDraft, model.StatusPublished:
	default:
		return fmt.Errorf("unknown status %q: %w", a.Status, ErrInvalidInput)
	}
	return nil
}

// prepareCreate fills server-side fields on a new article.
func (o options) prepareCreate(a model.Article) (model.Article, error) {
	if err := validate(a); err != nil {
		return model.Article{}, err
	}
	a = a.Clone()
	now := o.now()
	if a.ID == "" {
		a.ID = o.newID()
	}
	if a.Slug == "" {
		a.Slug = content.Slugify(a.Title)
	}
	if a.Slug == "" {
		a.Slug = a.ID
	}
	if a.Status == "" {
		a.Status = model.StatusPublished
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.UpdatedAt = now
	return a, nil
}

// mergeUpdate applies the editable fields of in onto stored.
func (o options) mergeUpdate(stored, in model.Article) (model.Article, error) {
	if err := validate(in); err != nil {
		return model.Article{}, err
	}
	out := in.Clone()
	out.ID = stored.ID
	out.CreatedAt = stored.CreatedAt
	out.Views = stored.Views
	if out.Slug == "" {
		out.Slug = stored.Slug
	}
	if out.Status == "" {
		out.Status = stored.Status
	}
	if out.Author == nil && stored.Author != nil {
		au := *stored.Author
		out.Author = &au
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	out.UpdatedAt = o.now()
	return out, nil
}

// annotateBlogCounts sets Author.BlogCount to the number of articles in the
// slice written by the same author id.
func annotateBlogCounts(articles []model.Article) {
	counts := make(map[string]int)
	for _, a := range articles {
		if id := a.AuthorID(); id != "" {
			counts[id]++
		}
	}
	for i := range articles {
		id := articles[i].AuthorID()
		if id == "" {
			continue
		}
		n := counts[id]
		au := *articles[i].Author
		au.BlogCount = &n
		articles[i].Author = &au
	}
}

func withBlogCount(a model.Article, n int) model.Article {
	if a.AuthorID() == "" {
		return a
	}
	au := *a.Author
	au.BlogCount = &n
	a.Author = &au
	return a
}

// Open returns the store for driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(opts...), nil
	case DialectSQLite, DialectPostgres:
		return OpenSQL(ctx, driver, dsn, opts...)
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownStore)
	}
}
