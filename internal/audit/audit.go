// Package audit records who changed which recommendation and when.
// Generation runs, disposition changes, edits and deletes each produce one
// event; bulk operations produce one event per item.
package audit

import (
	"context"
	"time"
)

// Event represents a single auditable action.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`         // "api:<ip>", "cli" or "system"
	Action       string    `json:"action"`        // see Action* constants
	ResourceType string    `json:"resource_type"` // "recommendation", "client", "goal"
	ResourceID   string    `json:"resource_id"`
	ClientID     string    `json:"client_id,omitempty"`
	Changes      *Changes  `json:"changes,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Outcome      string    `json:"outcome"` // success or failure
	Error        string    `json:"error,omitempty"`
}

// Changes captures the before and after state for update operations.
type Changes struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// ListOptions provides filtering and pagination for listing events.
type ListOptions struct {
	Limit        int
	Offset       int
	Actor        string
	Action       string
	ResourceType string
	ClientID     string
	Since        *time.Time
	Until        *time.Time
}

// normalize applies the default and maximum page size.
func (o *ListOptions) normalize() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Logger is implemented by every audit backend.
type Logger interface {
	// Log records an event, assigning ID and Timestamp when unset.
	Log(ctx context.Context, event *Event) error

	// List returns matching events newest first, plus the total match count.
	List(ctx context.Context, opts ListOptions) ([]*Event, int, error)

	// GetByResource returns every event for one resource, newest first.
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*Event, error)
}

// Actions.
const (
	ActionGenerate = "generate"
	ActionAccept   = "accept"
	ActionDecline  = "decline"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionCreate   = "create"
)

// Resource types.
const (
	ResourceRecommendation = "recommendation"
	ResourceClient         = "client"
	ResourceGoal           = "goal"
	ResourceInteraction    = "interaction"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ActorSystem is used when no actor is attached to the context.
const ActorSystem = "system"

type actorKey struct{}

// WithActor attaches the acting party to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor on ctx, or ActorSystem.
func ActorFromContext(ctx context.Context) string {
	if ctx != nil {
		if a, ok := ctx.Value(actorKey{}).(string); ok {
			return a
		}
	}
	return ActorSystem
}

// Nop discards every event.
type Nop struct{}

func (Nop) Log(context.Context, *Event) error { return nil }

func (Nop) List(context.Context, ListOptions) ([]*Event, int, error) { return nil, 0, nil }

func (Nop) GetByResource(context.Context, string, string) ([]*Event, error) { return nil, nil }
