package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wellcoach/internal/domain"
)

// MemoryRecommendationStore is an in-memory implementation of RecommendationStore.
type MemoryRecommendationStore struct {
	store *MemoryStore // shared mutex, reference checks
	recs  map[string]entry[domain.Recommendation]
}

var _ RecommendationStore = (*MemoryRecommendationStore)(nil)

// NewMemoryRecommendationStore creates a new in-memory recommendation store.
func NewMemoryRecommendationStore(store *MemoryStore) *MemoryRecommendationStore {
	return &MemoryRecommendationStore{
		store: store,
		recs:  make(map[string]entry[domain.Recommendation]),
	}
}

// checkRefs enforces the foreign keys the SQL backends get from the schema.
// Caller holds the store mutex.
func (m *MemoryRecommendationStore) checkRefs(rec domain.Recommendation) error {
	if _, ok := m.store.clients[rec.ClientID]; !ok {
		return fmt.Errorf("%w: client %s does not exist", ErrValidation, rec.ClientID)
	}
	if _, ok := m.store.resources[rec.ResourceID]; !ok {
		return fmt.Errorf("%w: resource %s does not exist", ErrValidation, rec.ResourceID)
	}
	if rec.GoalID != nil {
		g, ok := m.store.goals[*rec.GoalID]
		if !ok || g.val.ClientID != rec.ClientID {
			return fmt.Errorf("%w: goal %s does not belong to client %s", ErrValidation, *rec.GoalID, rec.ClientID)
		}
	}
	return nil
}

// cloneRecommendation copies r so the stored value never shares its pointer
// fields with callers.
func cloneRecommendation(r domain.Recommendation) domain.Recommendation {
	if r.GoalID != nil {
		id := *r.GoalID
		r.GoalID = &id
	}
	if r.Accepted != nil {
		a := *r.Accepted
		r.Accepted = &a
	}
	return r
}

func (m *MemoryRecommendationStore) CreateRecommendation(_ context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	if err := rec.Validate(); err != nil {
		return domain.Recommendation{}, Invalid(err)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if err := m.checkRefs(rec); err != nil {
		return domain.Recommendation{}, err
	}
	rec.ID = newID(rec.ID)
	if _, dup := m.recs[rec.ID]; dup {
		return domain.Recommendation{}, fmt.Errorf("recommendation %s: %w", rec.ID, ErrConflict)
	}
	if rec.RecommendationDate.IsZero() {
		rec.RecommendationDate = time.Now().UTC()
	}
	m.recs[rec.ID] = entry[domain.Recommendation]{seq: m.store.next(), val: cloneRecommendation(rec)}
	return cloneRecommendation(rec), nil
}

func (m *MemoryRecommendationStore) GetRecommendation(_ context.Context, id string) (*domain.Recommendation, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	e, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := cloneRecommendation(e.val)
	return &r, nil
}

func (m *MemoryRecommendationStore) ListRecommendations(_ context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	filtered := sorted(m.recs, func(r domain.Recommendation) bool {
		if filters.ClientID != "" && r.ClientID != filters.ClientID {
			return false
		}
		if filters.Status != "" && r.Disposition() != filters.Status {
			return false
		}
		return true
	})

	for i := range filtered {
		filtered[i] = cloneRecommendation(filtered[i])
	}

	switch filters.OrderBy {
	case domain.OrderByScore:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Score > filtered[j].Score
		})
	default:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].RecommendationDate.After(filtered[j].RecommendationDate)
		})
	}
	return filtered, nil
}

func (m *MemoryRecommendationStore) UpdateRecommendation(_ context.Context, id string, patch domain.RecommendationPatch) (*domain.Recommendation, error) {
	if err := patch.Validate(); err != nil {
		return nil, Invalid(err)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	e, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := patch.Apply(e.val)
	if err := m.checkRefs(updated); err != nil {
		return nil, err
	}
	e.val = cloneRecommendation(updated)
	m.recs[id] = e
	return &updated, nil
}

func (m *MemoryRecommendationStore) DeleteRecommendation(_ context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if _, ok := m.recs[id]; !ok {
		return ErrNotFound
	}
	delete(m.recs, id)
	return nil
}
