package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewMetricsDisabled(t *testing.T) {
	if m := NewMetrics(MetricsConfig{Enabled: false}); m != nil {
		t.Fatal("disabled metrics should be nil")
	}
	m := NewMetrics(MetricsConfig{Enabled: true})
	if m == nil || m.namespace != "wellcoach" {
		t.Fatalf("expected default namespace, got %+v", m)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordRateLimit(true)
	m.RecordGeneration(3, 1)
	m.RecordGenerationFailure()
	m.RecordDisposition("accepted")
	m.RecordBulkFailures(2)

	var buf bytes.Buffer
	m.WriteTo(&buf)
	if buf.Len() != 0 {
		t.Errorf("nil metrics wrote output: %q", buf.String())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/clients":                                              "/api/v1/clients",
		"/api/v1/clients/42/goals":                                     "/api/v1/clients/{id}/goals",
		"/api/v1/recommendations/6f1c4a5e-3c1b-4d2e-9a0f-1b2c3d4e5f60": "/api/v1/recommendations/{id}",
		"/api/v1/recommendations/6f1c4a5e-3c1b-4d2e-9a0f-1b2c3d4e5f60/accept": "/api/v1/recommendations/{id}/accept",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "wellcoach", Version: "1.2.3"})
	m.RecordHTTPRequest("GET", "/api/v1/recommendations", 200, 100*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/recommendations", 200, 300*time.Millisecond)
	m.RecordRateLimit(true)
	m.RecordRateLimit(false)
	m.RecordGeneration(4, 1)
	m.RecordGeneration(2, 0)
	m.RecordGenerationFailure()
	m.RecordDisposition("accepted")
	m.RecordDisposition("accepted")
	m.RecordDisposition("declined")
	m.RecordBulkFailures(1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`wellcoach_info{version="1.2.3"} 1`,
		`wellcoach_http_requests_total{method="GET",path="/api/v1/recommendations",status="200"} 2`,
		`wellcoach_http_request_duration_seconds_count{method="GET",path="/api/v1/recommendations"} 2`,
		`wellcoach_rate_limit_requests_total{status="allowed"} 1`,
		`wellcoach_rate_limit_requests_total{status="rejected"} 1`,
		`wellcoach_generation_runs_total 2`,
		`wellcoach_generation_failures_total 1`,
		`wellcoach_recommendations_generated_total 6`,
		`wellcoach_recommendation_persist_failures_total 1`,
		`wellcoach_recommendation_dispositions_total{outcome="accepted"} 2`,
		`wellcoach_recommendation_dispositions_total{outcome="declined"} 1`,
		`wellcoach_bulk_failures_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in output:\n%s", want, body)
		}
	}
}

func TestMetricsHandlerMethodNotAllowed(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	h := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.activeConnections.Load() != 1 {
			t.Errorf("active connections during request = %d, want 1", m.activeConnections.Load())
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.httpRequests["GET:/api/v1/clients:404"]; !ok || c.Load() != 1 {
		t.Errorf("expected one recorded 404, got %v", m.httpRequests)
	}
	if len(m.httpRequests) != 1 {
		t.Errorf("/metrics should not be recorded, got %v", m.httpRequests)
	}
	if m.activeConnections.Load() != 0 {
		t.Errorf("active connections after request = %d, want 0", m.activeConnections.Load())
	}
}

func TestMetricsMiddlewareNil(t *testing.T) {
	called := false
	h := MetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("inner handler not called")
	}
}

func TestDurationCollectorWindow(t *testing.T) {
	d := newDurationCollector(3)
	for i := 1; i <= 5; i++ {
		d.add(time.Duration(i) * time.Second)
	}
	q, sum, n := d.snapshot()
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if sum != 12 {
		t.Errorf("sum = %v, want 12 (3+4+5)", sum)
	}
	if q[0] != 4 {
		t.Errorf("p50 = %v, want 4", q[0])
	}

	if _, _, n := newDurationCollector(10).snapshot(); n != 0 {
		t.Errorf("empty collector count = %d", n)
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RecordHTTPRequest("GET", "/api/v1/clients", 200, time.Millisecond)
				m.RecordDisposition("accepted")
				m.RecordGeneration(1, 0)
			}
		}()
	}
	wg.Wait()

	if got := m.generated.Load(); got != 1000 {
		t.Errorf("generated = %d, want 1000", got)
	}
	if got := m.dispositions["accepted"]; got != 1000 {
		t.Errorf("accepted = %d, want 1000", got)
	}
}
