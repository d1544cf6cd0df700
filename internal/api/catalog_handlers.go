package api

import (
	"net/http"
	"time"

	"wellcoach/internal/domain"
)

// GET /api/v1/clients
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients, "total": len(clients)})
}

// GET /api/v1/clients/{id}
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "client_id", r.PathValue("id"))
	c, err := s.store.GetClient(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GET /api/v1/clients/{id}/goals
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	annotate(r.Context(), "client_id", id)
	if _, err := s.store.GetClient(r.Context(), id); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	goals, err := s.store.ListGoals(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals, "total": len(goals)})
}

// GET /api/v1/clients/{id}/interactions
func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	annotate(r.Context(), "client_id", id)
	if _, err := s.store.GetClient(r.Context(), id); err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	list, err := s.store.ListInteractions(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": list, "total": len(list)})
}

type createInteractionRequest struct {
	ResourceID string                 `json:"resourceId"`
	Type       domain.InteractionType `json:"type"`
	Timestamp  *time.Time             `json:"timestamp,omitempty"`
}

// POST /api/v1/clients/{id}/interactions
// Logging an interaction changes the client's next ranking: the novelty
// bonus disappears and the repeat penalty grows.
func (s *Server) handleCreateInteraction(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "client_id", r.PathValue("id"))
	var req createInteractionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	annotate(r.Context(), "resource_id", req.ResourceID)
	in := domain.Interaction{
		ClientID:   r.PathValue("id"),
		ResourceID: req.ResourceID,
		Type:       req.Type,
		Timestamp:  time.Now().UTC(),
	}
	if req.Timestamp != nil {
		in.Timestamp = req.Timestamp.UTC()
	}
	created, err := s.store.CreateInteraction(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/v1/clients/{id}/recommendations/preview?limit=
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	annotate(r.Context(), "client_id", r.PathValue("id"))
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	if limit == 0 {
		limit = s.generation.Limit
	}
	cands, err := s.svc.Preview(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands, "total": len(cands)})
}

// GET /api/v1/resources
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.store.ListResources(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources, "total": len(resources)})
}
