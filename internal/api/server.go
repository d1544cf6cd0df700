// Package api exposes the recommendation engine and its read models over
// HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"wellcoach/internal/audit"
	"wellcoach/internal/observability"
	"wellcoach/internal/recommend"
	"wellcoach/internal/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// GenerationDefaults are the limits used when a request leaves them out.
type GenerationDefaults struct {
	Limit       int
	AllLimit    int
	Concurrency int
}

// Server serves the HTTP API.
type Server struct {
	mux         *http.ServeMux
	store       storage.Store
	svc         *recommend.Service
	logger      observability.Logger
	metrics     *observability.Metrics
	auditLogger audit.Logger
	generation  GenerationDefaults
}

// NewServer creates a new HTTP server with the given dependencies.
// If logger is nil, a default logger will be used.
// If metrics is nil, metrics collection is disabled.
// If auditLogger is nil, the audit endpoint returns an empty list.
func NewServer(mux *http.ServeMux, store storage.Store, svc *recommend.Service, logger observability.Logger, metrics *observability.Metrics, auditLogger audit.Logger) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Server{
		mux:         mux,
		store:       store,
		svc:         svc,
		logger:      logger.WithComponent("api"),
		metrics:     metrics,
		auditLogger: auditLogger,
		generation: GenerationDefaults{
			Limit:       recommend.DefaultLimit,
			AllLimit:    recommend.DefaultAllLimit,
			Concurrency: 1,
		},
	}
}

// SetGenerationDefaults overrides the limits used by the generate endpoint.
// Non-positive fields keep their current value.
func (s *Server) SetGenerationDefaults(g GenerationDefaults) {
	if g.Limit > 0 {
		s.generation.Limit = g.Limit
	}
	if g.AllLimit > 0 {
		s.generation.AllLimit = g.AllLimit
	}
	if g.Concurrency > 0 {
		s.generation.Concurrency = g.Concurrency
	}
}

// RegisterRoutes registers every endpoint on the server's mux.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("GET /api/v1/clients", s.handleListClients)
	s.mux.HandleFunc("GET /api/v1/clients/{id}", s.handleGetClient)
	s.mux.HandleFunc("GET /api/v1/clients/{id}/goals", s.handleListGoals)
	s.mux.HandleFunc("GET /api/v1/clients/{id}/interactions", s.handleListInteractions)
	s.mux.HandleFunc("POST /api/v1/clients/{id}/interactions", s.handleCreateInteraction)
	s.mux.HandleFunc("GET /api/v1/clients/{id}/recommendations/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/v1/resources", s.handleListResources)

	s.mux.HandleFunc("GET /api/v1/recommendations", s.handleListRecommendations)
	s.mux.HandleFunc("POST /api/v1/recommendations/generate", s.handleGenerate)
	s.mux.HandleFunc("POST /api/v1/recommendations/bulk", s.handleBulk)
	s.mux.HandleFunc("GET /api/v1/recommendations/{id}", s.handleGetRecommendation)
	s.mux.HandleFunc("PATCH /api/v1/recommendations/{id}", s.handleUpdateRecommendation)
	s.mux.HandleFunc("DELETE /api/v1/recommendations/{id}", s.handleDeleteRecommendation)
	s.mux.HandleFunc("POST /api/v1/recommendations/{id}/accept", s.handleAccept)
	s.mux.HandleFunc("POST /api/v1/recommendations/{id}/decline", s.handleDecline)

	s.mux.HandleFunc("GET /api/v1/audit", s.handleAuditList)
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a storage-layer error to the appropriate HTTP status code
// and writes the error response. It uses errors.Is() to detect sentinel errors
// from the storage package, falling back to 500 Internal Server Error for unknown errors.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, storage.ErrUpstream):
		s.writeErr(ctx, w, http.StatusBadGateway, "record store unavailable", err.Error())
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
