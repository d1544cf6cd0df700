package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wellcoach/internal/audit"
	"wellcoach/internal/observability"
)

const (
	requestIDHeader        = "X-Request-ID"
	maxRequestIDLength     = 64
	rateLimiterVisitorTTL  = 5 * time.Minute
	minimumCleanupInterval = 30 * time.Second
)

// Middleware represents an HTTP middleware that wraps a handler.
type Middleware func(http.Handler) http.Handler

// ApplyMiddlewares applies the provided middleware in order, where the first middleware
// in the list is the outermost handler.
func ApplyMiddlewares(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RateLimitConfig configures the token bucket rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// Proxies whose X-Forwarded-For is trusted. nil trusts nobody.
	TrustedProxies *TrustedProxyConfig
	// Metrics counts allowed and rejected requests when non-nil.
	Metrics *observability.Metrics
}

// Enabled reports whether rate limiting should be enforced.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.Burst > 0
}

// RequestIDFromContext returns the request id set by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	return observability.RequestIDFromContext(ctx)
}

func appendRequestID(ctx context.Context, fields []any) []any {
	if id := RequestIDFromContext(ctx); id != "" {
		return append(fields, "request_id", id)
	}
	return fields
}

// RequestIDMiddleware ensures every request carries a stable request ID.
func RequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := sanitizeRequestID(r.Header.Get(requestIDHeader))
			if requestID == "" {
				requestID = uuid.New().String()
			}
			ctx := observability.WithRequestID(r.Context(), requestID)
			r = r.WithContext(ctx)
			w.Header().Set(requestIDHeader, requestID)
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeRequestID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxRequestIDLength {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return id
}

// requestNotes collects the domain ids a handler touched so the request log
// line and the Sentry scope name the client or recommendation involved.
type requestNotes struct {
	mu    sync.Mutex
	attrs []any
	hub   *sentry.Hub
}

type requestNotesKey struct{}

// annotate records key=value on the current request. Without
// LoggingMiddleware in the chain it is a no-op.
func annotate(ctx context.Context, key, value string) {
	n, ok := ctx.Value(requestNotesKey{}).(*requestNotes)
	if !ok || value == "" {
		return
	}
	n.mu.Lock()
	n.attrs = append(n.attrs, key, value)
	n.mu.Unlock()
	if n.hub != nil {
		n.hub.Scope().SetTag(key, value)
	}
}

func (n *requestNotes) fields() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]any(nil), n.attrs...)
}

// LoggingMiddleware logs one line per request with the client and
// recommendation ids the handlers noted, and wires Sentry tracing. Panics
// are recovered, reported and turned into a 500.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			hub := sentry.GetHubFromContext(ctx)
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
				ctx = sentry.SetHubOnContext(ctx, hub)
			}
			notes := &requestNotes{hub: hub}
			ctx = context.WithValue(ctx, requestNotesKey{}, notes)
			r = r.WithContext(ctx)

			transaction := sentry.StartTransaction(
				ctx,
				r.Method+" "+r.URL.Path,
				sentry.WithOpName("http.server"),
				sentry.ContinueFromRequest(r),
				sentry.WithTransactionSource(sentry.SourceURL),
			)
			defer transaction.Finish()
			r = r.WithContext(transaction.Context())
			ctx = r.Context()

			hub.Scope().SetRequest(r)
			if id := RequestIDFromContext(ctx); id != "" {
				hub.Scope().SetTag("request_id", id)
			}

			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			line := func(extra ...any) []any {
				attrs := appendRequestID(ctx, []any{"method", r.Method, "path", r.URL.Path})
				attrs = append(attrs, notes.fields()...)
				return append(attrs, extra...)
			}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(ctx, rec)
				logger.ErrorContext(ctx, "panic recovered", line("panic", rec)...)
				writeJSON(recorder, http.StatusInternalServerError, apiError{Error: "internal error"})
			}()

			next.ServeHTTP(recorder, r)

			transaction.Status = sentry.HTTPtoSpanStatus(recorder.status)
			attrs := line("status", recorder.status, "duration_ms", time.Since(start).Milliseconds())
			switch {
			case recorder.status >= 500:
				logger.ErrorContext(ctx, "request completed", attrs...)
			case recorder.status >= 400:
				logger.WarnContext(ctx, "request completed", attrs...)
			default:
				logger.InfoContext(ctx, "request completed", attrs...)
			}
		})
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware enforces per-client rate limiting using a token bucket.
// It adds the following headers to all responses:
//   - X-RateLimit-Limit: maximum requests per second
//   - X-RateLimit-Remaining: approximate remaining tokens
//   - X-RateLimit-Reset: Unix timestamp when a token will be available
//
// When the rate limit is exceeded, it returns 429 Too Many Requests with a Retry-After header.
func RateLimitMiddleware(cfg RateLimitConfig, logger *slog.Logger) Middleware {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu          sync.Mutex
		visitors    = make(map[string]*clientLimiter)
		lastCleanup time.Time
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := clientKeyWithProxies(r, cfg.TrustedProxies)

			mu.Lock()
			v, ok := visitors[key]
			if !ok {
				v = &clientLimiter{
					limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
					lastSeen: now,
				}
				visitors[key] = v
			} else {
				v.lastSeen = now
			}

			if lastCleanup.IsZero() || now.Sub(lastCleanup) > minimumCleanupInterval {
				for k, limiter := range visitors {
					if now.Sub(limiter.lastSeen) > rateLimiterVisitorTTL {
						delete(visitors, k)
					}
				}
				lastCleanup = now
			}
			mu.Unlock()

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
			remaining := max(int(math.Floor(v.limiter.Tokens())), 0)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			resetTime := now.Add(time.Duration(float64(time.Second) / cfg.RequestsPerSecond))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			allowed := v.limiter.AllowN(now, 1)
			cfg.Metrics.RecordRateLimit(allowed)
			if !allowed {
				attrs := appendRequestID(r.Context(), []any{
					"method", r.Method,
					"path", r.URL.Path,
					"client_ip", key,
				})
				logger.WarnContext(r.Context(), "rate limit exceeded", attrs...)
				retryAfter := max(int(math.Ceil(1/cfg.RequestsPerSecond)), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, apiError{Error: "too many requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActorMiddleware attaches "api:<client ip>" as the audit actor.
func ActorMiddleware(proxies *TrustedProxyConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithActor(r.Context(), "api:"+clientKeyWithProxies(r, proxies))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TrustedProxyConfig holds trusted proxy CIDR list for X-Forwarded-For handling.
type TrustedProxyConfig struct {
	CIDRs []netip.Prefix
}

// ParseTrustedProxies parses a comma-separated list of CIDRs.
func ParseTrustedProxies(raw string) (*TrustedProxyConfig, error) {
	if raw == "" {
		return &TrustedProxyConfig{}, nil
	}
	var cidrs []netip.Prefix
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", s, err)
		}
		cidrs = append(cidrs, prefix)
	}
	return &TrustedProxyConfig{CIDRs: cidrs}, nil
}

// IsTrusted checks if the remote address is from a trusted proxy.
func (tc *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	if tc == nil || len(tc.CIDRs) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, cidr := range tc.CIDRs {
		if cidr.Contains(addr) {
			return true
		}
	}
	return false
}

// clientKeyWithProxies extracts the client IP, only trusting X-Forwarded-For from trusted proxies.
func clientKeyWithProxies(r *http.Request, proxies *TrustedProxyConfig) string {
	if proxies != nil && proxies.IsTrusted(r.RemoteAddr) {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			parts := strings.SplitN(xff, ",", 2)
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
