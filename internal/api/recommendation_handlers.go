package api

import (
	"context"
	"net/http"
	"strconv"

	"wellcoach/internal/domain"
	"wellcoach/internal/recommend"
)

// GET /api/v1/recommendations?client_id=&status=&search=&sort=
func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	annotate(r.Context(), "client_id", q.Get("client_id"))
	status, ok := domain.ParseDisposition(q.Get("status"))
	if !ok {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid status", "use all, pending, accepted or declined")
		return
	}
	sortBy, ok := recommend.ParseSortBy(q.Get("sort"))
	if !ok {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid sort", "use date, score, client or resource")
		return
	}
	entries, err := s.svc.List(r.Context(), recommend.View{
		ClientID: q.Get("client_id"),
		Status:   status,
		Search:   q.Get("search"),
		SortBy:   sortBy,
	})
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": entries, "total": len(entries)})
}

type generateRequest struct {
	ClientID string `json:"client_id"`
	Limit    int    `json:"limit"`
}

type clientResultJSON struct {
	ClientID        string                  `json:"client_id"`
	ClientName      string                  `json:"client_name"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Error           string                  `json:"error,omitempty"`
}

// POST /api/v1/recommendations/generate
// Without client_id every client is processed and per-client failures are
// reported inline.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	annotate(r.Context(), "client_id", req.ClientID)
	if req.Limit < 0 {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid limit", "limit must not be negative")
		return
	}

	if req.ClientID != "" {
		limit := req.Limit
		if limit == 0 {
			limit = s.generation.Limit
		}
		recs, err := s.svc.Generate(r.Context(), req.ClientID, recommend.GenerateOptions{Limit: limit})
		if err != nil {
			s.writeStoreErr(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"recommendations": recs, "total": len(recs)})
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.generation.AllLimit
	}
	results, err := s.svc.GenerateAll(r.Context(), recommend.GenerateAllOptions{
		Limit:       limit,
		Concurrency: s.generation.Concurrency,
	})
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	out := make([]clientResultJSON, 0, len(results))
	total, failed := 0, 0
	for _, res := range results {
		item := clientResultJSON{
			ClientID:        res.ClientID,
			ClientName:      res.ClientName,
			Recommendations: res.Recommendations,
		}
		if item.Recommendations == nil {
			item.Recommendations = []domain.Recommendation{}
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
			failed++
		}
		total += len(res.Recommendations)
		out = append(out, item)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"results": out, "total": total, "failed_clients": failed})
}

type bulkRequest struct {
	Action   string   `json:"action"`
	IDs      []string `json:"ids"`
	ClientID string   `json:"client_id"`
	Search   string   `json:"search"`
}

type bulkFailureJSON struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// POST /api/v1/recommendations/bulk
// With no ids the pending recommendations matching client_id and search are
// used.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	annotate(r.Context(), "bulk_action", req.Action)
	annotate(r.Context(), "client_id", req.ClientID)
	var op func(context.Context, []string) recommend.BulkResult
	switch req.Action {
	case "accept":
		op = s.svc.BulkAccept
	case "decline":
		op = s.svc.BulkDecline
	default:
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid action", "use accept or decline")
		return
	}

	ids := req.IDs
	if len(ids) == 0 {
		entries, err := s.svc.List(r.Context(), recommend.View{
			ClientID: req.ClientID,
			Status:   domain.DispositionPending,
			Search:   req.Search,
		})
		if err != nil {
			s.writeStoreErr(r.Context(), w, err)
			return
		}
		ids = recommend.PendingIDs(entries)
	}

	annotate(r.Context(), "bulk_size", strconv.Itoa(len(ids)))
	res := op(r.Context(), ids)
	failures := make([]bulkFailureJSON, 0, len(res.Failed))
	for _, f := range res.Failed {
		failures = append(failures, bulkFailureJSON{ID: f.ID, Error: f.Err.Error()})
	}
	succeeded := res.Succeeded
	if succeeded == nil {
		succeeded = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": succeeded, "failed": failures})
}

// GET /api/v1/recommendations/{id}
func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "recommendation_id", r.PathValue("id"))
	rec, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// PATCH /api/v1/recommendations/{id}
func (s *Server) handleUpdateRecommendation(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "recommendation_id", r.PathValue("id"))
	var patch domain.RecommendationPatch
	if !s.decodeBody(w, r, &patch) {
		return
	}
	rec, err := s.svc.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DELETE /api/v1/recommendations/{id}
func (s *Server) handleDeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "recommendation_id", r.PathValue("id"))
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/recommendations/{id}/accept
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "recommendation_id", r.PathValue("id"))
	rec, err := s.svc.Accept(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /api/v1/recommendations/{id}/decline
func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "recommendation_id", r.PathValue("id"))
	rec, err := s.svc.Decline(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
