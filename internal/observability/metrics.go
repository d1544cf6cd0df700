package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MetricsConfig holds configuration for the metrics subsystem.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Version   string `yaml:"-"`
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Namespace: "wellcoach", Version: "dev"}
}

// Metrics collects process counters and renders them in the Prometheus text
// format. A nil *Metrics is valid and records nothing.
type Metrics struct {
	namespace string
	version   string

	mu            sync.RWMutex
	httpRequests  map[string]*atomic.Int64 // method:path:status
	httpDurations map[string]*durationCollector

	rateLimitAllowed  atomic.Int64
	rateLimitRejected atomic.Int64
	activeConnections atomic.Int64

	generationRuns     atomic.Int64
	generated          atomic.Int64
	persistFailures    atomic.Int64
	generationFailures atomic.Int64

	dispMu       sync.Mutex
	dispositions map[string]int64 // accepted, declined, updated, deleted
	bulkFailures atomic.Int64
}

// durationCollector keeps a sliding window of samples for quantiles.
type durationCollector struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
}

func newDurationCollector(maxSize int) *durationCollector {
	return &durationCollector{samples: make([]float64, 0, maxSize), maxSize: maxSize}
}

func (d *durationCollector) add(v time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.samples) >= d.maxSize {
		d.samples = append(d.samples[:0], d.samples[1:]...)
	}
	d.samples = append(d.samples, v.Seconds())
}

// snapshot returns the p50/p90/p99 quantiles, the sum and the count.
func (d *durationCollector) snapshot() (q [3]float64, sum float64, n int) {
	d.mu.Lock()
	s := append([]float64(nil), d.samples...)
	d.mu.Unlock()

	n = len(s)
	if n == 0 {
		return q, 0, 0
	}
	sort.Float64s(s)
	for _, v := range s {
		sum += v
	}
	for i, p := range []float64{0.5, 0.9, 0.99} {
		idx := p * float64(n-1)
		lo := int(idx)
		if lo+1 >= n {
			q[i] = s[n-1]
			continue
		}
		frac := idx - float64(lo)
		q[i] = s[lo]*(1-frac) + s[lo+1]*frac
	}
	return q, sum, n
}

// NewMetrics creates a Metrics collector, or nil when metrics are disabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "wellcoach"
	}
	return &Metrics{
		namespace:     ns,
		version:       cfg.Version,
		httpRequests:  make(map[string]*atomic.Int64),
		httpDurations: make(map[string]*durationCollector),
		dispositions:  make(map[string]int64),
	}
}

// RecordHTTPRequest records a finished HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	path = normalizePath(path)
	countKey := fmt.Sprintf("%s:%s:%d", method, path, status)
	durKey := method + ":" + path

	m.mu.Lock()
	c, ok := m.httpRequests[countKey]
	if !ok {
		c = &atomic.Int64{}
		m.httpRequests[countKey] = c
	}
	dc, ok := m.httpDurations[durKey]
	if !ok {
		dc = newDurationCollector(1000)
		m.httpDurations[durKey] = dc
	}
	m.mu.Unlock()

	c.Add(1)
	dc.add(d)
}

// RecordRateLimit counts one rate limiter decision.
func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		m.rateLimitAllowed.Add(1)
	} else {
		m.rateLimitRejected.Add(1)
	}
}

// RecordGeneration counts one generation run for a client: how many
// recommendations were persisted and how many writes failed.
func (m *Metrics) RecordGeneration(persisted, failed int) {
	if m == nil {
		return
	}
	m.generationRuns.Add(1)
	m.generated.Add(int64(persisted))
	m.persistFailures.Add(int64(failed))
}

// RecordGenerationFailure counts a client whose generation run aborted.
func (m *Metrics) RecordGenerationFailure() {
	if m == nil {
		return
	}
	m.generationFailures.Add(1)
}

// RecordDisposition counts a lifecycle change by outcome.
func (m *Metrics) RecordDisposition(outcome string) {
	if m == nil {
		return
	}
	m.dispMu.Lock()
	m.dispositions[outcome]++
	m.dispMu.Unlock()
}

// RecordBulkFailures adds n failed items from a bulk operation.
func (m *Metrics) RecordBulkFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bulkFailures.Add(int64(n))
}

// normalizePath collapses uuid path segments into {id}.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
			continue
		}
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Handler serves the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.WriteTo(w)
	})
}

// WriteTo renders every metric to w.
func (m *Metrics) WriteTo(w io.Writer) {
	if m == nil {
		return
	}
	ns := m.namespace
	header := func(name, help, typ string) {
		_, _ = fmt.Fprintf(w, "# HELP %s_%s %s\n# TYPE %s_%s %s\n", ns, name, help, ns, name, typ)
	}

	header("info", "Application information", "gauge")
	_, _ = fmt.Fprintf(w, "%s_info{version=%q} 1\n\n", ns, m.version)

	m.mu.RLock()
	countKeys := sortedKeys(m.httpRequests)
	durKeys := sortedKeys(m.httpDurations)
	header("http_requests_total", "Total number of HTTP requests", "counter")
	for _, k := range countKeys {
		p := strings.SplitN(k, ":", 3)
		if len(p) == 3 {
			_, _ = fmt.Fprintf(w, "%s_http_requests_total{method=%q,path=%q,status=%q} %d\n",
				ns, p[0], p[1], p[2], m.httpRequests[k].Load())
		}
	}
	_, _ = fmt.Fprintln(w)

	header("http_request_duration_seconds", "HTTP request duration in seconds", "summary")
	for _, k := range durKeys {
		p := strings.SplitN(k, ":", 2)
		if len(p) != 2 {
			continue
		}
		q, sum, n := m.httpDurations[k].snapshot()
		for i, label := range []string{"0.50", "0.90", "0.99"} {
			_, _ = fmt.Fprintf(w, "%s_http_request_duration_seconds{method=%q,path=%q,quantile=%q} %.6f\n",
				ns, p[0], p[1], label, q[i])
		}
		_, _ = fmt.Fprintf(w, "%s_http_request_duration_seconds_sum{method=%q,path=%q} %.6f\n", ns, p[0], p[1], sum)
		_, _ = fmt.Fprintf(w, "%s_http_request_duration_seconds_count{method=%q,path=%q} %d\n", ns, p[0], p[1], n)
	}
	m.mu.RUnlock()
	_, _ = fmt.Fprintln(w)

	header("rate_limit_requests_total", "Total rate limit decisions", "counter")
	_, _ = fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"allowed\"} %d\n", ns, m.rateLimitAllowed.Load())
	_, _ = fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"rejected\"} %d\n\n", ns, m.rateLimitRejected.Load())

	header("active_connections", "Current number of active HTTP connections", "gauge")
	_, _ = fmt.Fprintf(w, "%s_active_connections %d\n\n", ns, m.activeConnections.Load())

	header("generation_runs_total", "Per-client recommendation generation runs", "counter")
	_, _ = fmt.Fprintf(w, "%s_generation_runs_total %d\n", ns, m.generationRuns.Load())
	header("generation_failures_total", "Per-client generation runs that aborted", "counter")
	_, _ = fmt.Fprintf(w, "%s_generation_failures_total %d\n", ns, m.generationFailures.Load())
	header("recommendations_generated_total", "Recommendations persisted by generation", "counter")
	_, _ = fmt.Fprintf(w, "%s_recommendations_generated_total %d\n", ns, m.generated.Load())
	header("recommendation_persist_failures_total", "Recommendation writes skipped after a store error", "counter")
	_, _ = fmt.Fprintf(w, "%s_recommendation_persist_failures_total %d\n\n", ns, m.persistFailures.Load())

	header("recommendation_dispositions_total", "Recommendation lifecycle changes by outcome", "counter")
	m.dispMu.Lock()
	outcomes := sortedKeys(m.dispositions)
	for _, o := range outcomes {
		_, _ = fmt.Fprintf(w, "%s_recommendation_dispositions_total{outcome=%q} %d\n", ns, o, m.dispositions[o])
	}
	m.dispMu.Unlock()
	header("bulk_failures_total", "Items that failed inside bulk lifecycle operations", "counter")
	_, _ = fmt.Fprintf(w, "%s_bulk_failures_total %d\n", ns, m.bulkFailures.Load())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MetricsMiddleware records request counts, durations and active connections.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			m.activeConnections.Add(1)
			defer m.activeConnections.Add(-1)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.RecordHTTPRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
