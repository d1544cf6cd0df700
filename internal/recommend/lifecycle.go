package recommend

import (
	"context"
	"fmt"

	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
)

// Get returns a single recommendation.
func (s *Service) Get(ctx context.Context, id string) (*domain.Recommendation, error) {
	rec, err := s.recs.GetRecommendation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", id, err)
	}
	return rec, nil
}

// Accept marks a recommendation accepted. Repeating it is harmless and a
// later Decline overwrites it.
func (s *Service) Accept(ctx context.Context, id string) (*domain.Recommendation, error) {
	return s.dispose(ctx, id, domain.DispositionAccepted, audit.ActionAccept)
}

// Decline marks a recommendation declined.
func (s *Service) Decline(ctx context.Context, id string) (*domain.Recommendation, error) {
	return s.dispose(ctx, id, domain.DispositionDeclined, audit.ActionDecline)
}

func (s *Service) dispose(ctx context.Context, id string, d domain.Disposition, action string) (*domain.Recommendation, error) {
	rec, err := s.recs.UpdateRecommendation(ctx, id, domain.RecommendationPatch{Disposition: &d})
	s.record(ctx, recommendationEvent(action, rec, id, err))
	if err != nil {
		return nil, fmt.Errorf("%s recommendation %s: %w", action, id, err)
	}
	s.metrics.RecordDisposition(string(d))
	s.log.InfoContext(ctx, "recommendation "+string(d), "id", id, "client_id", rec.ClientID)
	return rec, nil
}

// Update merges patch into a stored recommendation.
func (s *Service) Update(ctx context.Context, id string, patch domain.RecommendationPatch) (*domain.Recommendation, error) {
	before, err := s.recs.GetRecommendation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update recommendation %s: %w", id, err)
	}
	after, err := s.recs.UpdateRecommendation(ctx, id, patch)
	ev := recommendationEvent(audit.ActionUpdate, before, id, err)
	if err == nil {
		ev.Changes = &audit.Changes{Before: snapshot(*before), After: snapshot(*after)}
	}
	s.record(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("update recommendation %s: %w", id, err)
	}
	s.metrics.RecordDisposition("updated")
	return after, nil
}

// Delete removes a recommendation permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	// Fetched only so the audit event carries the client.
	rec, _ := s.recs.GetRecommendation(ctx, id)
	err := s.recs.DeleteRecommendation(ctx, id)
	s.record(ctx, recommendationEvent(audit.ActionDelete, rec, id, err))
	if err != nil {
		return fmt.Errorf("delete recommendation %s: %w", id, err)
	}
	s.metrics.RecordDisposition("deleted")
	s.log.InfoContext(ctx, "recommendation deleted", "id", id)
	return nil
}

func snapshot(r domain.Recommendation) map[string]any {
	m := map[string]any{
		"clientId":           r.ClientID,
		"resourceId":         r.ResourceID,
		"score":              r.Score,
		"recommendationDate": r.RecommendationDate,
		"status":             string(r.Disposition()),
	}
	if r.GoalID != nil {
		m["goalId"] = *r.GoalID
	}
	return m
}
