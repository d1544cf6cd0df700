// Package storage defines the record-store contracts the recommendation
// engine depends on, the sentinel errors every backend returns, and an
// in-memory implementation used for quick start and tests.
package storage

import (
	"context"

	"wellcoach/internal/domain"
)

// ClientStore is the client registry.
type ClientStore interface {
	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) (domain.Client, error)
}

// GoalStore is the goal registry. ListGoals returns goals in creation order.
type GoalStore interface {
	ListGoals(ctx context.Context, clientID string) ([]domain.Goal, error)
	GetGoal(ctx context.Context, id string) (*domain.Goal, error)
	CreateGoal(ctx context.Context, g domain.Goal) (domain.Goal, error)
	UpdateGoal(ctx context.Context, id string, patch domain.GoalPatch) (*domain.Goal, error)
}

// ResourceStore is the resource catalog. ListResources returns the whole
// catalog in creation order.
type ResourceStore interface {
	ListResources(ctx context.Context) ([]domain.Resource, error)
	GetResource(ctx context.Context, id string) (*domain.Resource, error)
	CreateResource(ctx context.Context, r domain.Resource) (domain.Resource, error)
}

// InteractionStore is the append-only interaction log.
type InteractionStore interface {
	// ListInteractions returns a client's interactions, newest first.
	ListInteractions(ctx context.Context, clientID string) ([]domain.Interaction, error)
	CreateInteraction(ctx context.Context, i domain.Interaction) (domain.Interaction, error)
}

// RecommendationStore provides storage operations for recommendations.
type RecommendationStore interface {
	// CreateRecommendation persists a new recommendation and returns it with
	// its assigned ID.
	CreateRecommendation(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error)

	// GetRecommendation returns a single recommendation by ID.
	GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error)

	// ListRecommendations returns recommendations matching the filters.
	ListRecommendations(ctx context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, error)

	// UpdateRecommendation merges patch into the stored record and returns
	// the result.
	UpdateRecommendation(ctx context.Context, id string, patch domain.RecommendationPatch) (*domain.Recommendation, error)

	// DeleteRecommendation removes a recommendation permanently.
	DeleteRecommendation(ctx context.Context, id string) error
}

// Store is the full record store a backend provides.
type Store interface {
	ClientStore
	GoalStore
	ResourceStore
	InteractionStore
	// Close releases resources held by the store
	Close() error
}

// HealthCheck is implemented by backends that can report connectivity.
type HealthCheck interface {
	Ping(ctx context.Context) error
}
