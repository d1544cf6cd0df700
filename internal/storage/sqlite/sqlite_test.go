//go:build sqlite

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type seeded struct {
	client, other domain.Client
	goal          domain.Goal
	video, doc    domain.Resource
}

func seed(t *testing.T, s *Store) seeded {
	t.Helper()
	ctx := context.Background()
	var out seeded
	var err error
	if out.client, err = s.CreateClient(ctx, domain.Client{Name: "Ada"}); err != nil {
		t.Fatal(err)
	}
	if out.other, err = s.CreateClient(ctx, domain.Client{Name: "Grace"}); err != nil {
		t.Fatal(err)
	}
	if out.goal, err = s.CreateGoal(ctx, domain.Goal{ClientID: out.client.ID, Title: "Sleep more", Category: "Sleep", Status: domain.GoalStatusInProgress, Progress: 20}); err != nil {
		t.Fatal(err)
	}
	if out.video, err = s.CreateResource(ctx, domain.Resource{Title: "Wind Down", Category: "Sleep", Type: domain.ResourceTypeVideo, Difficulty: domain.DifficultyBeginner}); err != nil {
		t.Fatal(err)
	}
	if out.doc, err = s.CreateResource(ctx, domain.Resource{Title: "Sleep Hygiene", Category: "Sleep", Type: domain.ResourceTypeArticle, Downloadable: true}); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "twice.db")
	s1, err := New(dsn)
	if err != nil {
		t.Fatal(err)
	}
	_ = s1.Close()
	s2, err := New(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = s2.Close()

	status, err := Status(dsn)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(status, "schema_version=1") || !strings.Contains(status, "applied=1") {
		t.Errorf("unexpected status %q", status)
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := seed(t, s)

	clients, err := s.ListClients(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clients) != 2 || clients[0].Name != "Ada" || clients[0].Status != domain.ClientStatusActive {
		t.Errorf("clients = %+v", clients)
	}
	res, _ := s.ListResources(ctx)
	if len(res) != 2 || res[0].ID != d.video.ID || !res[1].Downloadable {
		t.Errorf("resources = %+v", res)
	}

	progress := 75
	g, err := s.UpdateGoal(ctx, d.goal.ID, domain.GoalPatch{Progress: &progress})
	if err != nil || g.Progress != 75 {
		t.Fatalf("UpdateGoal = %+v, %v", g, err)
	}
	if _, err := s.GetClient(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetClient ghost: %v", err)
	}
	if _, err := s.CreateClient(ctx, domain.Client{ID: d.client.ID, Name: "dup"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate client: %v, want ErrConflict", err)
	}
	if _, err := s.CreateGoal(ctx, domain.Goal{ClientID: "ghost", Title: "x"}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("dangling goal: %v, want ErrValidation", err)
	}
}

func TestInteractionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := seed(t, s)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{base, base.Add(500 * time.Millisecond), base.Add(-time.Hour)} {
		if _, err := s.CreateInteraction(ctx, domain.Interaction{ClientID: d.client.ID, ResourceID: d.video.ID, Type: domain.InteractionView, Timestamp: ts, ID: string(rune('a' + i))}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListInteractions(ctx, d.client.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Errorf("order = %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
	if _, err := s.CreateInteraction(ctx, domain.Interaction{ClientID: d.client.ID, ResourceID: "ghost", Type: domain.InteractionView}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("dangling resource: %v, want ErrValidation", err)
	}
}

func TestRecommendationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := seed(t, s)
	when := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	rec, err := s.CreateRecommendation(ctx, domain.Recommendation{
		ClientID: d.client.ID, ResourceID: d.video.ID, GoalID: &d.goal.ID, Score: 57, RecommendationDate: when,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRecommendation(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Accepted != nil || got.GoalID == nil || *got.GoalID != d.goal.ID || !got.RecommendationDate.Equal(when) {
		t.Errorf("stored = %+v", got)
	}

	accept := domain.DispositionAccepted
	up, err := s.UpdateRecommendation(ctx, rec.ID, domain.RecommendationPatch{Disposition: &accept})
	if err != nil || up.Disposition() != domain.DispositionAccepted {
		t.Fatalf("accept = %+v, %v", up, err)
	}
	decline := domain.DispositionDeclined
	up, _ = s.UpdateRecommendation(ctx, rec.ID, domain.RecommendationPatch{Disposition: &decline})
	if up.Disposition() != domain.DispositionDeclined {
		t.Errorf("last write should win, got %q", up.Disposition())
	}

	clear := ""
	up, err = s.UpdateRecommendation(ctx, rec.ID, domain.RecommendationPatch{GoalID: &clear})
	if err != nil || up.GoalID != nil {
		t.Errorf("clear goal = %+v, %v", up, err)
	}

	if err := s.DeleteRecommendation(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRecommendation(ctx, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	if err := s.DeleteRecommendation(ctx, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if _, err := s.UpdateRecommendation(ctx, rec.ID, domain.RecommendationPatch{Disposition: &accept}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update after delete: %v", err)
	}
}

func TestRecommendationReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := seed(t, s)

	tests := []struct {
		name string
		rec  domain.Recommendation
	}{
		{"unknown client", domain.Recommendation{ClientID: "ghost", ResourceID: d.video.ID}},
		{"unknown resource", domain.Recommendation{ClientID: d.client.ID, ResourceID: "ghost"}},
		{"goal of another client", domain.Recommendation{ClientID: d.other.ID, ResourceID: d.video.ID, GoalID: &d.goal.ID}},
		{"missing resource id", domain.Recommendation{ClientID: d.client.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateRecommendation(ctx, tt.rec); !errors.Is(err, storage.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestListRecommendationsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	d := seed(t, s)
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	yes, no := true, false

	mk := func(id, client, resource string, score int, at time.Time, accepted *bool) {
		t.Helper()
		if _, err := s.CreateRecommendation(ctx, domain.Recommendation{ID: id, ClientID: client, ResourceID: resource, Score: score, RecommendationDate: at, Accepted: accepted}); err != nil {
			t.Fatal(err)
		}
	}
	mk("r1", d.client.ID, d.video.ID, 40, base, nil)
	mk("r2", d.client.ID, d.doc.ID, 70, base.Add(time.Millisecond), &yes)
	mk("r3", d.other.ID, d.doc.ID, 55, base.Add(-time.Hour), &no)
	mk("r4", d.other.ID, d.video.ID, 70, base.Add(-2*time.Hour), nil)

	tests := []struct {
		name    string
		filters domain.RecommendationFilters
		want    []string
	}{
		{"all by date", domain.RecommendationFilters{}, []string{"r2", "r1", "r3", "r4"}},
		{"all by score", domain.RecommendationFilters{OrderBy: domain.OrderByScore}, []string{"r2", "r4", "r3", "r1"}},
		{"client", domain.RecommendationFilters{ClientID: d.other.ID}, []string{"r3", "r4"}},
		{"pending", domain.RecommendationFilters{Status: domain.DispositionPending}, []string{"r1", "r4"}},
		{"accepted", domain.RecommendationFilters{Status: domain.DispositionAccepted}, []string{"r2"}},
		{"declined for client", domain.RecommendationFilters{ClientID: d.client.ID, Status: domain.DispositionDeclined}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRecommendations(ctx, tt.filters)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %v", len(got), tt.want)
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("position %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestAuditLoggerSharesDatabase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	log := audit.NewSQLiteLogger(s.DB())

	for _, action := range []string{audit.ActionGenerate, audit.ActionAccept} {
		if err := log.Log(ctx, &audit.Event{Action: action, ResourceType: audit.ResourceRecommendation, ResourceID: "rec-1", ClientID: "c1"}); err != nil {
			t.Fatal(err)
		}
	}
	events, total, err := log.List(ctx, audit.ListOptions{ClientID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || events[0].Action != audit.ActionAccept {
		t.Errorf("total=%d first=%+v", total, events[0])
	}
}
