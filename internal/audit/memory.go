package audit

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEvents is the default maximum number of events to store.
const DefaultMaxEvents = 10000

// MemoryLogger keeps events in memory, newest first, bounded by maxEvents.
type MemoryLogger struct {
	mu        sync.RWMutex
	events    []*Event
	maxEvents int
}

// MemoryOption configures a MemoryLogger.
type MemoryOption func(*MemoryLogger)

// WithMaxEvents sets the maximum number of events to store.
func WithMaxEvents(n int) MemoryOption {
	return func(m *MemoryLogger) {
		if n > 0 {
			m.maxEvents = n
		}
	}
}

// NewMemoryLogger creates a new in-memory audit logger.
func NewMemoryLogger(opts ...MemoryOption) *MemoryLogger {
	m := &MemoryLogger{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func stamp(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}
}

func (m *MemoryLogger) Log(_ context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	stamp(event)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]*Event{copyEvent(event)}, m.events...)
	if len(m.events) > m.maxEvents {
		m.events = m.events[:m.maxEvents]
	}
	return nil
}

func (m *MemoryLogger) List(_ context.Context, opts ListOptions) ([]*Event, int, error) {
	opts.normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []*Event
	for _, e := range m.events {
		if matches(e, opts) {
			filtered = append(filtered, e)
		}
	}
	total := len(filtered)

	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)
	out := make([]*Event, 0, end-start)
	for _, e := range filtered[start:end] {
		out = append(out, copyEvent(e))
	}
	return out, total, nil
}

func (m *MemoryLogger) GetByResource(_ context.Context, resourceType, resourceID string) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Event
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, copyEvent(e))
		}
	}
	return out, nil
}

func matches(e *Event, opts ListOptions) bool {
	switch {
	case opts.Actor != "" && e.Actor != opts.Actor:
		return false
	case opts.Action != "" && e.Action != opts.Action:
		return false
	case opts.ResourceType != "" && e.ResourceType != opts.ResourceType:
		return false
	case opts.ClientID != "" && e.ClientID != opts.ClientID:
		return false
	case opts.Since != nil && e.Timestamp.Before(*opts.Since):
		return false
	case opts.Until != nil && e.Timestamp.After(*opts.Until):
		return false
	}
	return true
}

func copyEvent(e *Event) *Event {
	c := *e
	if e.Changes != nil {
		c.Changes = &Changes{Before: maps.Clone(e.Changes.Before), After: maps.Clone(e.Changes.After)}
	}
	return &c
}
