package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

var errInjected = errors.New("injected store failure")

var fixedNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *storage.MemoryStore
	recs  *flakyRecs
	audit *audit.MemoryLogger
	svc   *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ms := storage.NewMemoryStore()
	f := &fixture{
		store: ms,
		recs:  &flakyRecs{RecommendationStore: storage.NewMemoryRecommendationStore(ms)},
		audit: audit.NewMemoryLogger(),
	}
	opts = append([]Option{WithAudit(f.audit), WithClock(func() time.Time { return fixedNow })}, opts...)
	f.svc = NewService(ms, f.recs, opts...)
	return f
}

func (f *fixture) client(t *testing.T, id, name string) {
	t.Helper()
	if _, err := f.store.CreateClient(context.Background(), domain.Client{ID: id, Name: name}); err != nil {
		t.Fatalf("create client: %v", err)
	}
}

func (f *fixture) goal(t *testing.T, clientID, category string, status domain.GoalStatus, progress int) domain.Goal {
	t.Helper()
	g, err := f.store.CreateGoal(context.Background(), domain.Goal{
		ClientID: clientID, Title: category + " goal", Category: category, Status: status, Progress: progress,
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return g
}

func (f *fixture) resource(t *testing.T, id, title, category string, typ domain.ResourceType, diff domain.Difficulty) {
	t.Helper()
	if _, err := f.store.CreateResource(context.Background(), domain.Resource{
		ID: id, Title: title, Category: category, Type: typ, Difficulty: diff,
	}); err != nil {
		t.Fatalf("create resource: %v", err)
	}
}

func (f *fixture) interact(t *testing.T, clientID, resourceID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := f.store.CreateInteraction(context.Background(), domain.Interaction{
			ClientID: clientID, ResourceID: resourceID, Type: domain.InteractionView,
		}); err != nil {
			t.Fatalf("create interaction: %v", err)
		}
	}
}

func (f *fixture) pending(t *testing.T, clientID, resourceID string, score int, at time.Time) domain.Recommendation {
	t.Helper()
	rec, err := f.recs.CreateRecommendation(context.Background(), domain.Recommendation{
		ClientID: clientID, ResourceID: resourceID, Score: score, RecommendationDate: at,
	})
	if err != nil {
		t.Fatalf("create recommendation: %v", err)
	}
	return rec
}

// flakyRecs fails writes for selected resource ids (create) or record ids (update).
type flakyRecs struct {
	storage.RecommendationStore
	mu             sync.Mutex
	failCreateFor  map[string]bool
	failUpdateFor  map[string]bool
	createAttempts int
}

func (f *flakyRecs) CreateRecommendation(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	f.mu.Lock()
	f.createAttempts++
	fail := f.failCreateFor[rec.ResourceID]
	f.mu.Unlock()
	if fail {
		return domain.Recommendation{}, errInjected
	}
	return f.RecommendationStore.CreateRecommendation(ctx, rec)
}

func (f *flakyRecs) UpdateRecommendation(ctx context.Context, id string, patch domain.RecommendationPatch) (*domain.Recommendation, error) {
	f.mu.Lock()
	fail := f.failUpdateFor[id]
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.RecommendationStore.UpdateRecommendation(ctx, id, patch)
}

// brokenGoals fails ListGoals for one client.
type brokenGoals struct {
	storage.Store
	clientID string
}

func (b brokenGoals) ListGoals(ctx context.Context, clientID string) ([]domain.Goal, error) {
	if clientID == b.clientID {
		return nil, errInjected
	}
	return b.Store.ListGoals(ctx, clientID)
}

// noClients hides every client from listings, leaving references dangling.
type noClients struct {
	storage.Store
}

func (noClients) ListClients(context.Context) ([]domain.Client, error) { return nil, nil }

// goalLookups counts goal reads and refuses unscoped goal listings.
type goalLookups struct {
	storage.Store
	mu   sync.Mutex
	gets map[string]int
}

func (g *goalLookups) ListGoals(ctx context.Context, clientID string) ([]domain.Goal, error) {
	if clientID == "" {
		return nil, errInjected
	}
	return g.Store.ListGoals(ctx, clientID)
}

func (g *goalLookups) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	g.mu.Lock()
	if g.gets == nil {
		g.gets = make(map[string]int)
	}
	g.gets[id]++
	g.mu.Unlock()
	return g.Store.GetGoal(ctx, id)
}
