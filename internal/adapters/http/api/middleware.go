package api

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/medblog/internal/app"
	"github.com/okian/medblog/pkg/auth"
	"github.com/okian/medblog/pkg/metrics"
)

const (
	statusBadRequest      = 400
	statusUnauthorized    = 401
	statusForbidden       = 403
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500

	bearerPrefix   = "Bearer "
	viewerIDHeader = "X-Viewer-ID"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, getErrorType(wrapped.statusCode))
		}
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode == statusUnauthorized, statusCode == statusForbidden:
		return "auth"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(bearerPrefix):]), true
}

// requireRole rejects requests without a valid bearer token for one of roles.
func (s *Server) requireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", ErrAuthDisabled)
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing bearer token: %w", ErrUnauthorized))
			return
		}
		claims, err := s.auth.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", fmt.Errorf("%v: %w", err, ErrUnauthorized))
			return
		}
		if !slices.Contains(roles, claims.Role) {
			writeError(w, http.StatusForbidden, "forbidden", fmt.Errorf("role %q: %w", claims.Role, ErrForbidden))
			return
		}
		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}

// optionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth != nil {
			if token, ok := bearerToken(r); ok {
				if claims, err := s.auth.Validate(token); err == nil {
					r = r.WithContext(auth.WithClaims(r.Context(), claims))
				}
			}
		}
		next(w, r)
	}
}

func actorFrom(r *http.Request) service.Actor {
	c, ok := auth.FromContext(r.Context())
	if !ok {
		return service.Actor{}
	}
	return service.Actor{UserID: c.UserID, Name: c.Name, Role: c.Role}
}

// viewerID identifies the reader for view dedupe: the authenticated user,
// then the X-Viewer-ID header, then the client address.
func viewerID(r *http.Request) string {
	if c, ok := auth.FromContext(r.Context()); ok {
		return "user:" + c.UserID
	}
	if v := strings.TrimSpace(r.Header.Get(viewerIDHeader)); v != "" {
		return "anon:" + v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	return "ip:" + host
}
