package recommend

import (
	"context"
	"time"

	"wellcoach/internal/audit"
	"wellcoach/internal/domain"
	"wellcoach/internal/observability"
	"wellcoach/internal/storage"
)

// Service generates recommendations and manages their lifecycle.
type Service struct {
	store   storage.Store
	recs    storage.RecommendationStore
	log     observability.Logger
	metrics *observability.Metrics
	audit   audit.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards output.
func WithLogger(l observability.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics collector. nil disables metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit sets the audit logger. The default discards events.
func WithAudit(a audit.Logger) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock overrides the time source used for recommendation dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service over the given stores.
func NewService(store storage.Store, recs storage.RecommendationStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		recs:  recs,
		log:   observability.Discard(),
		audit: audit.Nop{},
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("recommend")
	return s
}

// record writes an audit event. Audit failures are logged, never returned.
func (s *Service) record(ctx context.Context, e audit.Event) {
	e.Actor = audit.ActorFromContext(ctx)
	e.RequestID = observability.RequestIDFromContext(ctx)
	if err := s.audit.Log(ctx, &e); err != nil {
		s.log.WarnContext(ctx, "audit log failed", "action", e.Action, "resource_id", e.ResourceID, "error", err)
	}
}

func recommendationEvent(action string, rec *domain.Recommendation, id string, err error) audit.Event {
	e := audit.Event{
		Action:       action,
		ResourceType: audit.ResourceRecommendation,
		ResourceID:   id,
		Outcome:      audit.OutcomeSuccess,
	}
	if rec != nil {
		e.ClientID = rec.ClientID
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailure
		e.Error = err.Error()
	}
	return e
}
