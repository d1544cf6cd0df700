package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
	"wellcoach/internal/observability"
	"wellcoach/internal/recommend"
	"wellcoach/internal/storage"
)

type testEnv struct {
	handler http.Handler
	store   *storage.MemoryStore
	audit   *audit.MemoryLogger
	server  *Server
}

// newTestEnv serves a memory store holding two clients, one goal and two
// resources. Only Maya (c1) has an in-progress Stress goal.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	ms := storage.NewMemoryStore()
	mustDo := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := ms.CreateClient(ctx, domain.Client{ID: "c1", Name: "Maya"})
	mustDo(err)
	_, err = ms.CreateClient(ctx, domain.Client{ID: "c2", Name: "Jon"})
	mustDo(err)
	_, err = ms.CreateGoal(ctx, domain.Goal{ID: "g1", ClientID: "c1", Title: "Manage stress", Category: "Stress",
		Status: domain.GoalStatusInProgress, Progress: 20})
	mustDo(err)
	_, err = ms.CreateResource(ctx, domain.Resource{ID: "r1", Title: "Box Breathing", Category: "Stress",
		Type: domain.ResourceTypeVideo, Difficulty: domain.DifficultyBeginner})
	mustDo(err)
	_, err = ms.CreateResource(ctx, domain.Resource{ID: "r2", Title: "Sleep Hygiene", Category: "Sleep",
		Type: domain.ResourceTypeArticle})
	mustDo(err)

	logger := observability.NewLoggerFromSlog(newTestLogger())
	auditLog := audit.NewMemoryLogger()
	svc := recommend.NewService(ms, storage.NewMemoryRecommendationStore(ms),
		recommend.WithAudit(auditLog), recommend.WithLogger(logger))

	mux := http.NewServeMux()
	srv := NewServer(mux, ms, svc, logger, nil, auditLog)
	srv.RegisterRoutes()
	return &testEnv{
		handler: ApplyMiddlewares(mux, RequestIDMiddleware(), ActorMiddleware(nil)),
		store:   ms,
		audit:   auditLog,
		server:  srv,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type recsResponse struct {
	Recommendations []recommend.Entry `json:"recommendations"`
	Total           int               `json:"total"`
}

func (e *testEnv) generate(t *testing.T, clientID string) []domain.Recommendation {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/recommendations/generate", fmt.Sprintf(`{"client_id":%q}`, clientID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	return decode[struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}](t, rr).Recommendations
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz = %d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rr.Code)
	}
	if resp := decode[ReadinessResponse](t, rr); resp.Checks["store"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

type downStore struct{ *storage.MemoryStore }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreFailure(t *testing.T) {
	ms := storage.NewMemoryStore()
	mux := http.NewServeMux()
	svc := recommend.NewService(ms, storage.NewMemoryRecommendationStore(ms))
	NewServer(mux, downStore{ms}, svc, observability.NewLoggerFromSlog(newTestLogger()), nil, nil).RegisterRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", rr.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		path      string
		wantCode  int
		wantTotal int
	}{
		{"/api/v1/clients", http.StatusOK, 2},
		{"/api/v1/clients/c1/goals", http.StatusOK, 1},
		{"/api/v1/clients/c2/goals", http.StatusOK, 0},
		{"/api/v1/clients/ghost/goals", http.StatusNotFound, 0},
		{"/api/v1/clients/c1/interactions", http.StatusOK, 0},
		{"/api/v1/clients/ghost/interactions", http.StatusNotFound, 0},
		{"/api/v1/resources", http.StatusOK, 2},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.path, "")
			if rr.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := decode[struct{ Total int }](t, rr).Total; got != tt.wantTotal {
				t.Errorf("total = %d, want %d", got, tt.wantTotal)
			}
		})
	}

	rr := env.do(t, http.MethodGet, "/api/v1/clients/c1", "")
	if c := decode[domain.Client](t, rr); rr.Code != http.StatusOK || c.Name != "Maya" {
		t.Errorf("get client = %d %+v", rr.Code, c)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/clients/ghost", "")
	if e := decode[apiError](t, rr); rr.Code != http.StatusNotFound || e.Error != "not found" {
		t.Errorf("get ghost = %d %+v", rr.Code, e)
	}
}

func TestCreateInteraction(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"ok", "/api/v1/clients/c1/interactions", `{"resourceId":"r1","type":"view"}`, http.StatusCreated},
		{"with timestamp", "/api/v1/clients/c1/interactions", `{"resourceId":"r2","type":"complete","timestamp":"2026-01-02T03:04:05Z"}`, http.StatusCreated},
		{"unknown resource", "/api/v1/clients/c1/interactions", `{"resourceId":"nope","type":"view"}`, http.StatusBadRequest},
		{"unknown client", "/api/v1/clients/ghost/interactions", `{"resourceId":"r1","type":"view"}`, http.StatusBadRequest},
		{"missing type", "/api/v1/clients/c1/interactions", `{"resourceId":"r1"}`, http.StatusBadRequest},
		{"unknown field", "/api/v1/clients/c1/interactions", `{"resourceId":"r1","type":"view","extra":1}`, http.StatusBadRequest},
		{"not json", "/api/v1/clients/c1/interactions", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, http.MethodPost, tt.path, tt.body); rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}

	list := decode[struct {
		Interactions []domain.Interaction `json:"interactions"`
	}](t, env.do(t, http.MethodGet, "/api/v1/clients/c1/interactions", "")).Interactions
	if len(list) != 2 {
		t.Fatalf("interactions = %+v", list)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/clients/c1/recommendations/preview?limit=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("preview = %d %s", rr.Code, rr.Body.String())
	}
	cands := decode[struct {
		Candidates []recommend.Candidate `json:"candidates"`
	}](t, rr).Candidates
	if len(cands) != 1 || cands[0].Score != 58 || cands[0].Resource.ID != "r1" {
		t.Errorf("candidates = %+v", cands)
	}
	if got := decode[recsResponse](t, env.do(t, http.MethodGet, "/api/v1/recommendations", "")).Total; got != 0 {
		t.Errorf("preview persisted %d recommendations", got)
	}

	if rr := env.do(t, http.MethodGet, "/api/v1/clients/c1/recommendations/preview?limit=x", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/clients/ghost/recommendations/preview", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown client = %d", rr.Code)
	}
}

func TestGenerateAndList(t *testing.T) {
	env := newTestEnv(t)

	recs := env.generate(t, "c1")
	if len(recs) != 2 || recs[0].Score != 58 || recs[1].Score != 17 {
		t.Fatalf("generated = %+v", recs)
	}
	if recs[0].GoalID == nil || *recs[0].GoalID != "g1" {
		t.Errorf("goal id = %v", recs[0].GoalID)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/recommendations?sort=score&client_id=c1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d", rr.Code)
	}
	list := decode[recsResponse](t, rr)
	if list.Total != 2 || list.Recommendations[0].ClientName != "Maya" || list.Recommendations[0].ResourceTitle != "Box Breathing" {
		t.Errorf("list = %+v", list)
	}
	if list.Recommendations[0].Status != domain.DispositionPending || list.Recommendations[0].GoalTitle != "Manage stress" {
		t.Errorf("entry = %+v", list.Recommendations[0])
	}

	if got := decode[recsResponse](t, env.do(t, http.MethodGet, "/api/v1/recommendations?search=sleep", "")).Total; got != 1 {
		t.Errorf("search total = %d, want 1", got)
	}

	for _, q := range []string{"status=archived", "sort=popularity"} {
		if rr := env.do(t, http.MethodGet, "/api/v1/recommendations?"+q, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", q, rr.Code)
		}
	}

	for _, body := range []string{`{"client_id":"ghost"}`, `{"client_id":"c1","limit":-1}`} {
		rr := env.do(t, http.MethodPost, "/api/v1/recommendations/generate", body)
		if rr.Code != http.StatusNotFound && rr.Code != http.StatusBadRequest {
			t.Errorf("%s = %d", body, rr.Code)
		}
	}
}

func TestGenerateAllClients(t *testing.T) {
	env := newTestEnv(t)
	env.server.SetGenerationDefaults(GenerationDefaults{AllLimit: 1, Concurrency: 2})

	rr := env.do(t, http.MethodPost, "/api/v1/recommendations/generate", `{}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate all = %d %s", rr.Code, rr.Body.String())
	}
	resp := decode[struct {
		Results []clientResultJSON `json:"results"`
		Total   int                `json:"total"`
		Failed  int                `json:"failed_clients"`
	}](t, rr)
	if len(resp.Results) != 2 || resp.Total != 2 || resp.Failed != 0 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Results[0].ClientID != "c1" || resp.Results[0].Recommendations[0].Score != 58 {
		t.Errorf("c1 = %+v", resp.Results[0])
	}
	// Jon has no goals: 10 base + 5 novelty + 3 video.
	if resp.Results[1].ClientName != "Jon" || resp.Results[1].Recommendations[0].Score != 18 {
		t.Errorf("c2 = %+v", resp.Results[1])
	}
}

func TestRecommendationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	recs := env.generate(t, "c1")
	id := recs[0].ID
	path := "/api/v1/recommendations/" + id

	rr := env.do(t, http.MethodPost, path+"/accept", "")
	if got := decode[domain.Recommendation](t, rr); rr.Code != http.StatusOK || got.Disposition() != domain.DispositionAccepted {
		t.Fatalf("accept = %d %+v", rr.Code, got)
	}
	rr = env.do(t, http.MethodPost, path+"/decline", "")
	if got := decode[domain.Recommendation](t, rr); rr.Code != http.StatusOK || got.Disposition() != domain.DispositionDeclined {
		t.Fatalf("decline = %d %+v", rr.Code, got)
	}

	rr = env.do(t, http.MethodPatch, path, `{"score":90,"goalId":""}`)
	if got := decode[domain.Recommendation](t, rr); rr.Code != http.StatusOK || got.Score != 90 || got.GoalID != nil {
		t.Fatalf("patch = %d %+v", rr.Code, got)
	}
	if rr := env.do(t, http.MethodPatch, path, `{"disposition":"pending"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("patch to pending = %d", rr.Code)
	}

	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
		t.Errorf("get = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/v1/recommendations/ghost/accept", ""); rr.Code != http.StatusNotFound {
		t.Errorf("accept ghost = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/audit?action=accept", "")
	events := decode[struct {
		Events []*audit.Event `json:"events"`
		Total  int            `json:"total"`
	}](t, rr)
	// One successful accept and one failed accept of the unknown id.
	if events.Total != 2 {
		t.Fatalf("audit = %+v", events)
	}
	for _, e := range events.Events {
		if e.Actor != "api:192.0.2.1" || e.RequestID == "" {
			t.Errorf("event = %+v", e)
		}
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/audit?since=yesterday", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d", rr.Code)
	}
}

func TestBulk(t *testing.T) {
	env := newTestEnv(t)
	env.generate(t, "c1")
	jon := env.generate(t, "c2")

	type bulkResponse struct {
		Succeeded []string          `json:"succeeded"`
		Failed    []bulkFailureJSON `json:"failed"`
	}

	rr := env.do(t, http.MethodPost, "/api/v1/recommendations/bulk", `{"action":"accept","client_id":"c1"}`)
	if got := decode[bulkResponse](t, rr); rr.Code != http.StatusOK || len(got.Succeeded) != 2 || len(got.Failed) != 0 {
		t.Fatalf("bulk accept = %d %+v", rr.Code, got)
	}
	pending := decode[recsResponse](t, env.do(t, http.MethodGet, "/api/v1/recommendations?status=pending", ""))
	if pending.Total != 2 {
		t.Errorf("pending after bulk = %d, want 2", pending.Total)
	}

	body := fmt.Sprintf(`{"action":"decline","ids":["ghost",%q]}`, jon[0].ID)
	rr = env.do(t, http.MethodPost, "/api/v1/recommendations/bulk", body)
	got := decode[bulkResponse](t, rr)
	if len(got.Succeeded) != 1 || got.Succeeded[0] != jon[0].ID || len(got.Failed) != 1 || got.Failed[0].ID != "ghost" {
		t.Errorf("bulk decline = %+v", got)
	}

	if rr := env.do(t, http.MethodPost, "/api/v1/recommendations/bulk", `{"action":"archive"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad action = %d", rr.Code)
	}
}

func TestWriteStoreErr(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("client x: %w", storage.ErrNotFound), http.StatusNotFound},
		{storage.Invalid(domain.ErrEmptyTitle), http.StatusBadRequest},
		{fmt.Errorf("dup: %w", storage.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: 503", storage.ErrUpstream), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		env.server.writeStoreErr(context.Background(), rr, tt.err)
		if rr.Code != tt.want {
			t.Errorf("%v -> %d, want %d", tt.err, rr.Code, tt.want)
		}
		if e := decode[apiError](t, rr); e.Detail != tt.err.Error() {
			t.Errorf("detail = %q", e.Detail)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodDelete, "/api/v1/recommendations", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE collection = %d", rr.Code)
	}
}

func TestRequestLogCarriesDomainIDs(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	env.handler = LoggingMiddleware(logger)(env.handler)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   []string
	}{
		{"client goals", http.MethodGet, "/api/v1/clients/c1/goals", "", []string{"client_id=c1", "status=200"}},
		{"preview", http.MethodGet, "/api/v1/clients/c2/recommendations/preview", "", []string{"client_id=c2"}},
		{"generate", http.MethodPost, "/api/v1/recommendations/generate", `{"client_id":"c1"}`, []string{"client_id=c1"}},
		{"accept missing", http.MethodPost, "/api/v1/recommendations/nope/accept", "", []string{"recommendation_id=nope", "status=404"}},
		{"bulk", http.MethodPost, "/api/v1/recommendations/bulk", `{"action":"decline","client_id":"c2"}`,
			[]string{"bulk_action=decline", "client_id=c2", "bulk_size=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			env.do(t, tt.method, tt.path, tt.body)
			line := buf.String()
			if !strings.Contains(line, `msg="request completed"`) {
				t.Fatalf("no completion line in %q", line)
			}
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("log line missing %q: %s", w, line)
				}
			}
		})
	}
}
