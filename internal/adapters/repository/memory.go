package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/medblog/internal/domain/model"
)

// MemoryStore keeps articles in an insertion-ordered slice guarded by a mutex.
type MemoryStore struct {
	opts options

	mu     sync.RWMutex
	order  []string
	byID   map[string]model.Article
	bySlug map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:   o,
		byID:   make(map[string]model.Article),
		bySlug: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, a model.Article) (model.Article, error) {
	a, err := s.opts.prepareCreate(a)
	if err != nil {
		return model.Article{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return model.Article{}, fmt.Errorf("id %s: %w", a.ID, ErrConflict)
	}
	if _, ok := s.bySlug[a.Slug]; ok {
		return model.Article{}, fmt.Errorf("slug %s: %w", a.Slug, ErrConflict)
	}
	s.byID[a.ID] = a
	s.bySlug[a.Slug] = a.ID
	s.order = append(s.order, a.ID)
	return s.annotated(a), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return model.Article{}, fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	return s.annotated(a), nil
}

func (s *MemoryStore) GetBySlug(ctx context.Context, slug string) (model.Article, error) {
	s.mu.RLock()
	id, ok := s.bySlug[slug]
	s.mu.RUnlock()
	if !ok {
		return model.Article{}, fmt.Errorf("slug %s: %w", slug, ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *MemoryStore) Update(_ context.Context, in model.Article) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[in.ID]
	if !ok {
		return model.Article{}, fmt.Errorf("id %s: %w", in.ID, ErrNotFound)
	}
	out, err := s.opts.mergeUpdate(stored, in)
	if err != nil {
		return model.Article{}, err
	}
	if owner, taken := s.bySlug[out.Slug]; taken && owner != out.ID {
		return model.Article{}, fmt.Errorf("slug %s: %w", out.Slug, ErrConflict)
	}
	delete(s.bySlug, stored.Slug)
	s.bySlug[out.Slug] = out.ID
	s.byID[out.ID] = out
	return s.annotated(out), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	delete(s.byID, id)
	delete(s.bySlug, a.Slug)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Article, error) {
	s.mu.RLock()
	out := make([]model.Article, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	s.mu.RUnlock()
	annotateBlogCounts(out)
	return out, nil
}

func (s *MemoryStore) IncrementViews(_ context.Context, id string, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("negative view delta %d: %w", delta, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	a.Views += delta
	s.byID[id] = a
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *MemoryStore) Close() error { return nil }

// annotated must be called with s.mu held.
func (s *MemoryStore) annotated(a model.Article) model.Article {
	a = a.Clone()
	id := a.AuthorID()
	if id == "" {
		return a
	}
	n := 0
	for _, other := range s.byID {
		if other.AuthorID() == id {
			n++
		}
	}
	return withBlogCount(a, n)
}
