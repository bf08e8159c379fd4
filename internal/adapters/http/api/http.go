// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/medblog/internal/adapters/assistant"
	"github.com/okian/medblog/internal/adapters/repository"
	service "github.com/okian/medblog/internal/app"
	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/pkg/auth"
	"github.com/okian/medblog/pkg/logger"
)

const defaultMaxFeedLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Read operations expose the ranked feed and article lookups.
	Feed(ctx context.Context, category string, limit int) ([]model.RankedArticle, error)
	Search(ctx context.Context, query string) ([]model.Article, error)
	Article(ctx context.Context, idOrSlug string) (model.Article, error)
	Categories(ctx context.Context) ([]model.Category, error)

	// RecordView queues a view. Returns false for a repeat viewer.
	RecordView(ctx context.Context, articleID, viewerID string) (bool, error)

	// CMS writes.
	CreateArticle(ctx context.Context, actor service.Actor, in model.Article) (model.Article, error)
	UpdateArticle(ctx context.Context, actor service.Actor, id string, in model.Article) (model.Article, error)
	DeleteArticle(ctx context.Context, actor service.Actor, id string) error

	Analytics(ctx context.Context, topN int) (model.Analytics, error)
	Ask(ctx context.Context, message string, history []assistant.Message) (string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	auth          *auth.Manager
	maxFeedLimit  int
	logger        logger.Logger
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	dashboard     *dashboardHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAuth enables bearer-token checks for CMS routes.
func WithAuth(m *auth.Manager) Option {
	return func(s *Server) {
		s.auth = m
	}
}

// WithMaxFeedLimit caps the limit query parameter of the feed.
func WithMaxFeedLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxFeedLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		maxFeedLimit:  defaultMaxFeedLimit,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		dashboard:     newDashboardHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /dashboard", s.dashboard.HandleDashboard)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /articles", MetricsMiddleware(s.handleFeed, "articles"))
	mux.HandleFunc("GET /articles/search", MetricsMiddleware(s.handleSearch, "articles_search"))
	mux.HandleFunc("GET /articles/{id}", MetricsMiddleware(s.optionalAuth(s.handleGetArticle), "article"))
	mux.HandleFunc("POST /articles", MetricsMiddleware(s.requireRole(s.handleCreateArticle, model.RoleAdmin, model.RoleBlogger), "article_create"))
	mux.HandleFunc("PUT /articles/{id}", MetricsMiddleware(s.requireRole(s.handleUpdateArticle, model.RoleAdmin, model.RoleBlogger), "article_update"))
	mux.HandleFunc("DELETE /articles/{id}", MetricsMiddleware(s.requireRole(s.handleDeleteArticle, model.RoleAdmin, model.RoleBlogger), "article_delete"))

	mux.HandleFunc("GET /categories", MetricsMiddleware(s.handleCategories, "categories"))
	mux.HandleFunc("GET /admin/analytics", MetricsMiddleware(s.requireRole(s.handleAnalytics, model.RoleAdmin), "analytics"))
	mux.HandleFunc("POST /assistant/chat", MetricsMiddleware(s.handleChat, "assistant_chat"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates sentinel errors from the layers below into
// status codes. Unknown errors are logged and reported as 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, assistant.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrAuthDisabled),
		errors.Is(err, assistant.ErrDisabled),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, assistant.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
