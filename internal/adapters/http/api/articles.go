package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/medblog/internal/adapters/repository"
	service "github.com/okian/medblog/internal/app"
	"github.com/okian/medblog/internal/domain/content"
	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/pkg/logger"
)

type feedResponse struct {
	Category string                `json:"category"`
	Count    int                   `json:"count"`
	Articles []model.RankedArticle `json:"articles"`
}

type searchResponse struct {
	Query    string          `json:"query"`
	Count    int             `json:"count"`
	Articles []model.Article `json:"articles"`
}

type articleResponse struct {
	model.Article
	ReadingMinutes int  `json:"readingMinutes"`
	ViewCounted    bool `json:"viewCounted"`
}

// handleFeed handles GET /articles.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q, err := parseFeedQuery(r, s.maxFeedLimit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	feed, err := s.deps.Feed(r.Context(), q.Category, q.Limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	category := q.Category
	if category == "" {
		category = model.CategoryAll
	}
	writeJSON(w, http.StatusOK, feedResponse{Category: category, Count: len(feed), Articles: feed})
}

// handleSearch handles GET /articles/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	found, err := s.deps.Search(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Count: len(found), Articles: found})
}

// handleGetArticle handles GET /articles/{id}. The id may also be a slug.
// Drafts are only visible to their author and admins.
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.deps.Article(ctx, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if a.Status == model.StatusDraft {
		actor := actorFrom(r)
		if !actor.IsAdmin() && (actor.UserID == "" || actor.UserID != a.AuthorID()) {
			s.writeServiceError(w, r, fmt.Errorf("article %s: %w", a.ID, repository.ErrNotFound))
			return
		}
	}

	resp := articleResponse{Article: a, ReadingMinutes: content.ReadingMinutes(a.Content)}
	if a.Status != model.StatusDraft {
		counted, err := s.deps.RecordView(ctx, a.ID, viewerID(r))
		switch {
		case err == nil:
			resp.ViewCounted = counted
		case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrNotStarted):
			s.logger.Warn(ctx, "view dropped", logger.String("article", a.ID), logger.Error(err))
		default:
			s.writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateArticle handles POST /articles.
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeServiceError(w, r, invalid(err))
		return
	}
	created, err := s.deps.CreateArticle(r.Context(), actorFrom(r), req.toModel())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/articles/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateArticle handles PUT /articles/{id}. The path accepts an id or a
// slug. An omitted featured flag keeps the stored value.
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req articleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeServiceError(w, r, invalid(err))
		return
	}

	existing, err := s.deps.Article(ctx, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	in := req.toModel()
	if req.Featured == nil {
		in.Featured = existing.Featured
	}

	updated, err := s.deps.UpdateArticle(ctx, actorFrom(r), existing.ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteArticle handles DELETE /articles/{id}. The path accepts an id or
// a slug.
func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, err := s.deps.Article(ctx, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.deps.DeleteArticle(ctx, actorFrom(r), existing.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCategories handles GET /categories.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// handleAnalytics handles GET /admin/analytics.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	top, err := parseTopN(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	an, err := s.deps.Analytics(r.Context(), top)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, an)
}
