package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wellcoach/internal/domain"
)

// entry pairs a record with its insertion sequence so listings keep
// creation order.
type entry[T any] struct {
	seq int64
	val T
}

// MemoryStore is an in-memory implementation for quick start and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	seq          int64
	clients      map[string]entry[domain.Client]
	goals        map[string]entry[domain.Goal]
	resources    map[string]entry[domain.Resource]
	interactions map[string]entry[domain.Interaction]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:      make(map[string]entry[domain.Client]),
		goals:        make(map[string]entry[domain.Goal]),
		resources:    make(map[string]entry[domain.Resource]),
		interactions: make(map[string]entry[domain.Interaction]),
	}
}

// next returns the next insertion sequence. Caller holds mu.
func (m *MemoryStore) next() int64 {
	m.seq++
	return m.seq
}

func sorted[T any](in map[string]entry[T], keep func(T) bool) []T {
	es := make([]entry[T], 0, len(in))
	for _, e := range in {
		if keep == nil || keep(e.val) {
			es = append(es, e)
		}
	}
	sort.Slice(es, func(i, j int) bool { return es[i].seq < es[j].seq })
	out := make([]T, len(es))
	for i, e := range es {
		out[i] = e.val
	}
	return out
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func (m *MemoryStore) ListClients(ctx context.Context) ([]domain.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(m.clients, nil), nil
}

func (m *MemoryStore) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := e.val
	return &c, nil
}

func (m *MemoryStore) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	if err := c.Validate(); err != nil {
		return domain.Client{}, Invalid(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = newID(c.ID)
	if _, dup := m.clients[c.ID]; dup {
		return domain.Client{}, fmt.Errorf("client %s: %w", c.ID, ErrConflict)
	}
	if c.JoinDate.IsZero() {
		c.JoinDate = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = domain.ClientStatusActive
	}
	m.clients[c.ID] = entry[domain.Client]{seq: m.next(), val: c}
	return c, nil
}

func (m *MemoryStore) ListGoals(ctx context.Context, clientID string) ([]domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(m.goals, func(g domain.Goal) bool {
		return clientID == "" || g.ClientID == clientID
	}), nil
}

func (m *MemoryStore) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	g := e.val
	return &g, nil
}

func (m *MemoryStore) CreateGoal(ctx context.Context, g domain.Goal) (domain.Goal, error) {
	if err := g.Validate(); err != nil {
		return domain.Goal{}, Invalid(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[g.ClientID]; !ok {
		return domain.Goal{}, fmt.Errorf("%w: client %s does not exist", ErrValidation, g.ClientID)
	}
	g.ID = newID(g.ID)
	if _, dup := m.goals[g.ID]; dup {
		return domain.Goal{}, fmt.Errorf("goal %s: %w", g.ID, ErrConflict)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	m.goals[g.ID] = entry[domain.Goal]{seq: m.next(), val: g}
	return g, nil
}

func (m *MemoryStore) UpdateGoal(ctx context.Context, id string, patch domain.GoalPatch) (*domain.Goal, error) {
	if err := patch.Validate(); err != nil {
		return nil, Invalid(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.val = patch.Apply(e.val)
	m.goals[id] = e
	g := e.val
	return &g, nil
}

func (m *MemoryStore) ListResources(ctx context.Context) ([]domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(m.resources, nil), nil
}

func (m *MemoryStore) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := e.val
	return &r, nil
}

func (m *MemoryStore) CreateResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	if err := r.Validate(); err != nil {
		return domain.Resource{}, Invalid(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = newID(r.ID)
	if _, dup := m.resources[r.ID]; dup {
		return domain.Resource{}, fmt.Errorf("resource %s: %w", r.ID, ErrConflict)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.resources[r.ID] = entry[domain.Resource]{seq: m.next(), val: r}
	return r, nil
}

func (m *MemoryStore) ListInteractions(ctx context.Context, clientID string) ([]domain.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := sorted(m.interactions, func(i domain.Interaction) bool {
		return clientID == "" || i.ClientID == clientID
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) CreateInteraction(ctx context.Context, i domain.Interaction) (domain.Interaction, error) {
	if err := i.Validate(); err != nil {
		return domain.Interaction{}, Invalid(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[i.ClientID]; !ok {
		return domain.Interaction{}, fmt.Errorf("%w: client %s does not exist", ErrValidation, i.ClientID)
	}
	if _, ok := m.resources[i.ResourceID]; !ok {
		return domain.Interaction{}, fmt.Errorf("%w: resource %s does not exist", ErrValidation, i.ResourceID)
	}
	i.ID = newID(i.ID)
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now().UTC()
	}
	m.interactions[i.ID] = entry[domain.Interaction]{seq: m.next(), val: i}
	return i, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
