package recommend

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
)

// Default result sizes.
const (
	DefaultLimit    = 10 // single client
	DefaultAllLimit = 5  // per client when generating for everyone
)

// GenerateOptions controls a single-client run.
type GenerateOptions struct {
	// Limit caps the number of recommendations. Zero or negative means DefaultLimit.
	Limit int
}

// GenerateAllOptions controls a run over every client.
type GenerateAllOptions struct {
	// Limit per client. Zero or negative means DefaultAllLimit.
	Limit int
	// Concurrency is the number of clients processed at once. Values below 2
	// run clients strictly one after another.
	Concurrency int
}

// Candidate is a ranked resource that passed the persistence threshold.
type Candidate struct {
	Resource  domain.Resource `json:"resource"`
	Score     int             `json:"score"` // capped
	Breakdown Breakdown       `json:"breakdown"`
	GoalID    *string         `json:"goalId"`
}

// ClientResult is the outcome of one client inside GenerateAll.
type ClientResult struct {
	ClientID        string
	ClientName      string
	Recommendations []domain.Recommendation
	Err             error
}

// Preview ranks the catalog for a client without persisting anything.
func (s *Service) Preview(ctx context.Context, clientID string, limit int) ([]Candidate, error) {
	_, cands, err := s.rank(ctx, clientID, limit)
	return cands, err
}

// Generate ranks the catalog for a client and persists the top entries as
// pending recommendations. A failed write is logged and skipped; the result
// holds the records that were stored, in ranked order.
func (s *Service) Generate(ctx context.Context, clientID string, opts GenerateOptions) ([]domain.Recommendation, error) {
	client, cands, err := s.rank(ctx, clientID, opts.Limit)
	if err != nil {
		s.metrics.RecordGenerationFailure()
		return nil, err
	}

	now := s.now()
	out := make([]domain.Recommendation, 0, len(cands))
	failed := 0
	for _, c := range cands {
		rec, err := s.recs.CreateRecommendation(ctx, domain.Recommendation{
			ClientID:           client.ID,
			ResourceID:         c.Resource.ID,
			GoalID:             c.GoalID,
			Score:              c.Score,
			RecommendationDate: now,
		})
		if err != nil {
			failed++
			s.log.ErrorContext(ctx, "persist recommendation failed",
				"client_id", client.ID, "resource_id", c.Resource.ID, "score", c.Score, "error", err)
			continue
		}
		out = append(out, rec)
	}

	s.metrics.RecordGeneration(len(out), failed)
	s.log.InfoContext(ctx, "recommendations generated",
		"client_id", client.ID, "candidates", len(cands), "persisted", len(out), "failed", failed)
	s.record(ctx, audit.Event{
		Action:       audit.ActionGenerate,
		ResourceType: audit.ResourceClient,
		ResourceID:   client.ID,
		ClientID:     client.ID,
		Changes:      &audit.Changes{After: map[string]any{"persisted": len(out), "failed": failed}},
	})
	return out, nil
}

// GenerateAll runs Generate for every client. A failing client is logged and
// reported in its ClientResult; it never stops the others. Results follow
// client listing order.
func (s *Service) GenerateAll(ctx context.Context, opts GenerateAllOptions) ([]ClientResult, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultAllLimit
	}

	results := make([]ClientResult, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, c := range clients {
		results[i] = ClientResult{ClientID: c.ID, ClientName: c.Name}
		if gctx.Err() != nil {
			results[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			recs, err := s.Generate(gctx, c.ID, GenerateOptions{Limit: limit})
			if err != nil {
				s.log.WarnContext(gctx, "generation skipped client", "client_id", c.ID, "error", err)
				results[i].Err = err
				return nil
			}
			results[i].Recommendations = recs
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// rank loads a client's working set and returns the ranked, capped,
// truncated candidates.
func (s *Service) rank(ctx context.Context, clientID string, limit int) (*domain.Client, []Candidate, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("client %s: %w", clientID, err)
	}
	goals, err := s.store.ListGoals(ctx, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("goals for client %s: %w", clientID, err)
	}
	interactions, err := s.store.ListInteractions(ctx, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("interactions for client %s: %w", clientID, err)
	}
	catalog, err := s.store.ListResources(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list resources: %w", err)
	}

	// The first listed goal is attached regardless of which goal matched.
	firstGoal := ""
	if len(goals) > 0 {
		firstGoal = goals[0].ID
	}

	cands := make([]Candidate, 0, len(catalog))
	for _, r := range catalog {
		b := Explain(goals, interactions, r)
		if b.Total <= PersistThreshold {
			continue
		}
		c := Candidate{
			Resource:  r,
			Score:     min(b.Total, MaxScore),
			Breakdown: b,
		}
		if firstGoal != "" {
			id := firstGoal
			c.GoalID = &id
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })

	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return client, cands, nil
}
