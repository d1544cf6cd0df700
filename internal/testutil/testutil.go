// Package testutil provides testing utilities for wellcoach integration tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"wellcoach/internal/api"
	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
	"wellcoach/internal/observability"
	"wellcoach/internal/recommend"
	"wellcoach/internal/storage"
)

// TestServerConfig holds configuration for creating a test server.
type TestServerConfig struct {
	// EnableRateLimit enables rate limiting middleware.
	EnableRateLimit bool
	// RateLimitConfig configures rate limiting if enabled.
	RateLimitConfig api.RateLimitConfig
	// EnableMetrics enables metrics collection and GET /metrics.
	EnableMetrics bool
	// Generation overrides the server's generation defaults when non-zero.
	Generation api.GenerationDefaults
}

// DefaultTestServerConfig returns a basic test server configuration.
func DefaultTestServerConfig() TestServerConfig {
	return TestServerConfig{}
}

// TestServerComponents holds all the components created for a test server.
type TestServerComponents struct {
	// Server is the test HTTP server.
	Server *httptest.Server
	// Store is the storage backend, already holding the SeedPractice data.
	Store *storage.MemoryStore
	// Recommendations is the recommendation store behind Service.
	Recommendations *storage.MemoryRecommendationStore
	Service         *recommend.Service
	// AuditLogger records every generation and disposition.
	AuditLogger *audit.MemoryLogger
	// Metrics is nil unless EnableMetrics was set.
	Metrics *observability.Metrics
	Logger  observability.Logger
	// Cleanup tears down the test server.
	Cleanup func()
}

// SeedPractice loads a small practice into store:
//
//	c1 Maya  in-progress Stress goal g1 at 20% progress
//	c2 Jon   no goals
//	r1 Box Breathing  video, Stress, Beginner
//	r2 Sleep Hygiene  article, Sleep
//
// Generating for Maya scores r1 at 58 and r2 at 17; for Jon r1 scores 18
// and r2 17.
func SeedPractice(t *testing.T, store *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	must := func(_ any, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed practice: %v", err)
		}
	}
	must(store.CreateClient(ctx, domain.Client{ID: "c1", Name: "Maya"}))
	must(store.CreateClient(ctx, domain.Client{ID: "c2", Name: "Jon"}))
	must(store.CreateGoal(ctx, domain.Goal{ID: "g1", ClientID: "c1", Title: "Manage stress",
		Category: "Stress", Status: domain.GoalStatusInProgress, Progress: 20}))
	must(store.CreateResource(ctx, domain.Resource{ID: "r1", Title: "Box Breathing", Category: "Stress",
		Type: domain.ResourceTypeVideo, Difficulty: domain.DifficultyBeginner}))
	must(store.CreateResource(ctx, domain.Resource{ID: "r2", Title: "Sleep Hygiene", Category: "Sleep",
		Type: domain.ResourceTypeArticle}))
}

// NewTestServer creates a fully configured test server over a memory store
// seeded with SeedPractice. The server is closed when the test ends.
func NewTestServer(t *testing.T, cfg TestServerConfig) *TestServerComponents {
	t.Helper()

	store := storage.NewMemoryStore()
	SeedPractice(t, store)
	recs := storage.NewMemoryRecommendationStore(store)

	logger := observability.NewLogger(observability.Config{
		Level:  "debug",
		Format: "json",
		Output: io.Discard,
	})

	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics(observability.MetricsConfig{
			Enabled:   true,
			Namespace: "wellcoach_test",
			Version:   "test",
		})
	}

	auditLogger := audit.NewMemoryLogger(audit.WithMaxEvents(1000))
	svc := recommend.NewService(store, recs,
		recommend.WithLogger(logger),
		recommend.WithMetrics(metrics),
		recommend.WithAudit(auditLogger),
	)

	mux := http.NewServeMux()
	srv := api.NewServer(mux, store, svc, logger, metrics, auditLogger)
	srv.SetGenerationDefaults(cfg.Generation)
	srv.RegisterRoutes()

	mws := []api.Middleware{
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
	}
	if cfg.EnableRateLimit {
		rl := cfg.RateLimitConfig
		if rl.Metrics == nil {
			rl.Metrics = metrics
		}
		mws = append(mws, api.RateLimitMiddleware(rl, logger.Slog()))
	}
	mws = append(mws, api.ActorMiddleware(nil))

	testServer := httptest.NewServer(api.ApplyMiddlewares(mux, mws...))
	cleanup := func() {
		testServer.Close()
		_ = store.Close()
	}
	t.Cleanup(cleanup)

	return &TestServerComponents{
		Server:          testServer,
		Store:           store,
		Recommendations: recs,
		Service:         svc,
		AuditLogger:     auditLogger,
		Metrics:         metrics,
		Logger:          logger,
		Cleanup:         cleanup,
	}
}

// DoRequest performs an HTTP request and returns the response.
func DoRequest(t *testing.T, client *http.Client, req *http.Request) *http.Response {
	t.Helper()

	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	return resp
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, got, expected int) {
	t.Helper()

	if got != expected {
		t.Errorf("expected status %d, got %d", expected, got)
	}
}

// JSONBody creates an io.Reader from a JSON-serializable value.
func JSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}

	return bytes.NewReader(data)
}

// ReadJSONResponse reads and unmarshals a JSON response body.
func ReadJSONResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nBody: %s", err, string(data))
	}
}

// URL returns the full URL for a given path.
func (c *TestServerComponents) URL(path string) string {
	return c.Server.URL + path
}
