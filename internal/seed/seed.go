// Package seed loads a small demo practice into any store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

//go:embed mockdata.yaml
var mockData []byte

// Fixture is the on-disk shape of a seed file. Records refer to each other
// by key so the stores are free to assign their own ids.
type Fixture struct {
	Clients []struct {
		Key          string    `yaml:"key"`
		Name         string    `yaml:"name"`
		Email        string    `yaml:"email"`
		Status       string    `yaml:"status"`
		Practitioner string    `yaml:"practitioner"`
		JoinDate     time.Time `yaml:"join_date"`
	} `yaml:"clients"`
	Resources []struct {
		Key          string `yaml:"key"`
		Title        string `yaml:"title"`
		Category     string `yaml:"category"`
		Type         string `yaml:"type"`
		Difficulty   string `yaml:"difficulty"`
		Description  string `yaml:"description"`
		Duration     int    `yaml:"duration"`
		ReadTime     int    `yaml:"read_time"`
		Downloadable bool   `yaml:"downloadable"`
	} `yaml:"resources"`
	Goals []struct {
		Client   string `yaml:"client"`
		Title    string `yaml:"title"`
		Category string `yaml:"category"`
		Status   string `yaml:"status"`
		Progress int    `yaml:"progress"`
	} `yaml:"goals"`
	Interactions []struct {
		Client   string `yaml:"client"`
		Resource string `yaml:"resource"`
		Type     string `yaml:"type"`
	} `yaml:"interactions"`
}

// Summary counts what Load created.
type Summary struct {
	Clients, Resources, Goals, Interactions int
	// ClientIDs maps fixture keys to stored ids.
	ClientIDs map[string]string
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return &f, nil
}

// Default returns the embedded demo fixture.
func Default() (*Fixture, error) {
	return Parse(mockData)
}

// Load writes every record of f into store, resolving keys to the ids the
// store assigns. It stops at the first failure.
func Load(ctx context.Context, store storage.Store, f *Fixture) (Summary, error) {
	sum := Summary{ClientIDs: make(map[string]string, len(f.Clients))}
	resourceIDs := make(map[string]string, len(f.Resources))

	for _, c := range f.Clients {
		created, err := store.CreateClient(ctx, domain.Client{
			Name:         c.Name,
			Email:        c.Email,
			Status:       domain.ClientStatus(c.Status),
			Practitioner: c.Practitioner,
			JoinDate:     c.JoinDate,
		})
		if err != nil {
			return sum, fmt.Errorf("seed client %q: %w", c.Key, err)
		}
		sum.ClientIDs[c.Key] = created.ID
		sum.Clients++
	}

	for _, r := range f.Resources {
		created, err := store.CreateResource(ctx, domain.Resource{
			Title:        r.Title,
			Category:     r.Category,
			Type:         domain.ResourceType(r.Type),
			Difficulty:   domain.Difficulty(r.Difficulty),
			Description:  r.Description,
			Duration:     r.Duration,
			ReadTime:     r.ReadTime,
			Downloadable: r.Downloadable,
		})
		if err != nil {
			return sum, fmt.Errorf("seed resource %q: %w", r.Key, err)
		}
		resourceIDs[r.Key] = created.ID
		sum.Resources++
	}

	for _, g := range f.Goals {
		clientID, ok := sum.ClientIDs[g.Client]
		if !ok {
			return sum, fmt.Errorf("seed goal %q: unknown client key %q", g.Title, g.Client)
		}
		if _, err := store.CreateGoal(ctx, domain.Goal{
			ClientID: clientID,
			Title:    g.Title,
			Category: g.Category,
			Status:   domain.GoalStatus(g.Status),
			Progress: g.Progress,
		}); err != nil {
			return sum, fmt.Errorf("seed goal %q: %w", g.Title, err)
		}
		sum.Goals++
	}

	for _, in := range f.Interactions {
		clientID, ok := sum.ClientIDs[in.Client]
		if !ok {
			return sum, fmt.Errorf("seed interaction: unknown client key %q", in.Client)
		}
		resourceID, ok := resourceIDs[in.Resource]
		if !ok {
			return sum, fmt.Errorf("seed interaction: unknown resource key %q", in.Resource)
		}
		if _, err := store.CreateInteraction(ctx, domain.Interaction{
			ClientID:   clientID,
			ResourceID: resourceID,
			Type:       domain.InteractionType(in.Type),
		}); err != nil {
			return sum, fmt.Errorf("seed interaction %s/%s: %w", in.Client, in.Resource, err)
		}
		sum.Interactions++
	}
	return sum, nil
}
