package api

import (
	"net/http"
	"strconv"
	"time"

	"wellcoach/internal/audit"
	"wellcoach/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadinessResponse represents the JSON response for the readiness check endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady checks if the application is ready to accept traffic.
// Unlike /healthz (liveness), this endpoint verifies that the record store
// is reachable. Returns 200 OK if all checks pass, 503 Service Unavailable otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string)
	status := "ok"

	var err error
	if hc, ok := s.store.(storage.HealthCheck); ok {
		err = hc.Ping(ctx)
	} else {
		_, err = s.store.ListClients(ctx)
	}
	if err != nil {
		checks["store"] = "error"
		status = "unhealthy"
		s.logger.ErrorContext(ctx, "readiness check failed", "check", "store", "error", err.Error())
	} else {
		checks["store"] = "ok"
	}

	resp := ReadinessResponse{Status: status, Checks: checks}
	if status == "ok" {
		writeJSON(w, http.StatusOK, resp)
	} else {
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}

// GET /api/v1/audit - List audit events with optional filtering
// Query params: limit, offset, actor, action, resource_type, client_id, since, until
func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	opts := audit.ListOptions{
		Limit:        limit,
		Offset:       offset,
		Actor:        q.Get("actor"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ClientID:     q.Get("client_id"),
	}
	for name, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid "+name, "use RFC 3339 timestamps")
			return
		}
		*dst = &t
	}

	events, total, err := s.auditLogger.List(r.Context(), opts)
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "failed to list audit events", err.Error())
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
