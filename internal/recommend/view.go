package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

// SortBy orders a listing.
type SortBy string

const (
	SortDate     SortBy = "date" // newest first
	SortScore    SortBy = "score"
	SortClient   SortBy = "client"
	SortResource SortBy = "resource"
)

// ParseSortBy accepts "" as SortDate.
func ParseSortBy(s string) (SortBy, bool) {
	switch SortBy(s) {
	case "", SortDate:
		return SortDate, true
	case SortScore, SortClient, SortResource:
		return SortBy(s), true
	}
	return "", false
}

// Fallback names for references that no longer resolve.
const (
	UnknownClient   = "Unknown Client"
	UnknownResource = "Unknown Resource"
)

// View selects and orders recommendations for display.
type View struct {
	ClientID string
	Status   domain.Disposition // empty means all
	Search   string             // case-insensitive, client or resource name
	SortBy   SortBy
}

// Entry is a recommendation with the names a dashboard shows.
type Entry struct {
	domain.Recommendation
	Status        domain.Disposition  `json:"status"`
	ClientName    string              `json:"clientName"`
	ResourceTitle string              `json:"resourceTitle"`
	ResourceType  domain.ResourceType `json:"resourceType,omitempty"`
	Category      string              `json:"category,omitempty"`
	GoalTitle     string              `json:"goalTitle,omitempty"`
}

// List returns the recommendations selected by v, enriched with names.
func (s *Service) List(ctx context.Context, v View) ([]Entry, error) {
	order := domain.OrderByDate
	if v.SortBy == SortScore {
		order = domain.OrderByScore
	}
	recs, err := s.recs.ListRecommendations(ctx, domain.RecommendationFilters{
		ClientID: v.ClientID,
		Status:   v.Status,
		OrderBy:  order,
	})
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	if len(recs) == 0 {
		return []Entry{}, nil
	}

	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	resources, err := s.store.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	goalTitles, err := s.goalTitles(ctx, v.ClientID, recs)
	if err != nil {
		return nil, err
	}

	clientNames := make(map[string]string, len(clients))
	for _, c := range clients {
		clientNames[c.ID] = c.Name
	}
	resByID := make(map[string]domain.Resource, len(resources))
	for _, r := range resources {
		resByID[r.ID] = r
	}

	search := strings.ToLower(strings.TrimSpace(v.Search))
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		e := Entry{Recommendation: r, Status: r.Disposition(), ClientName: UnknownClient, ResourceTitle: UnknownResource}
		if name, ok := clientNames[r.ClientID]; ok {
			e.ClientName = name
		}
		if res, ok := resByID[r.ResourceID]; ok {
			e.ResourceTitle = res.Title
			e.ResourceType = res.Type
			e.Category = res.Category
		}
		if r.GoalID != nil {
			e.GoalTitle = goalTitles[*r.GoalID]
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.ClientName), search) &&
			!strings.Contains(strings.ToLower(e.ResourceTitle), search) {
			continue
		}
		out = append(out, e)
	}

	switch v.SortBy {
	case SortClient:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ClientName < out[j].ClientName })
	case SortResource:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ResourceTitle < out[j].ResourceTitle })
	case SortScore:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RecommendationDate.After(out[j].RecommendationDate)
		})
	}
	return out, nil
}

// goalTitles resolves the titles of the goals recs reference. A client view
// loads that client's goals in one call; otherwise each referenced goal is
// fetched once. Goals that no longer exist are left untitled.
func (s *Service) goalTitles(ctx context.Context, clientID string, recs []domain.Recommendation) (map[string]string, error) {
	titles := make(map[string]string)
	if clientID != "" {
		goals, err := s.store.ListGoals(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("list goals: %w", err)
		}
		for _, g := range goals {
			titles[g.ID] = g.Title
		}
		return titles, nil
	}
	for _, r := range recs {
		if r.GoalID == nil {
			continue
		}
		if _, seen := titles[*r.GoalID]; seen {
			continue
		}
		g, err := s.store.GetGoal(ctx, *r.GoalID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			titles[*r.GoalID] = ""
		case err != nil:
			return nil, fmt.Errorf("goal %s: %w", *r.GoalID, err)
		default:
			titles[g.ID] = g.Title
		}
	}
	return titles, nil
}
