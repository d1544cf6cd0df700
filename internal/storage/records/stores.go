package records

import (
	"context"
	"fmt"
	"net/http"

	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

// Clients

func (c *Client) ListClients(ctx context.Context) ([]domain.Client, error) {
	var rows []clientRecord
	if err := c.query(ctx, tableClient, queryRequest{OrderBy: []ordering{asc("Id")}}, &rows); err != nil {
		return nil, err
	}
	return convert[domain.Client](rows), nil
}

func (c *Client) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var row clientRecord
	if err := c.get(ctx, tableClient, id, &row); err != nil {
		return nil, err
	}
	cl := row.toDomain()
	return &cl, nil
}

func (c *Client) CreateClient(ctx context.Context, in domain.Client) (domain.Client, error) {
	if err := in.Validate(); err != nil {
		return domain.Client{}, storage.Invalid(err)
	}
	if in.Status == "" {
		in.Status = domain.ClientStatusActive
	}
	rec := map[string]any{
		"Name":         in.Name,
		"email":        in.Email,
		"avatar":       in.Avatar,
		"status":       string(in.Status),
		"practitioner": in.Practitioner,
	}
	if !in.JoinDate.IsZero() {
		rec["join_date"] = formatTime(in.JoinDate)
	}
	var row clientRecord
	if err := c.write(ctx, http.MethodPost, tableClient, rec, &row); err != nil {
		return domain.Client{}, err
	}
	return row.toDomain(), nil
}

// Goals

func (c *Client) ListGoals(ctx context.Context, clientID string) ([]domain.Goal, error) {
	q := queryRequest{OrderBy: []ordering{asc("Id")}}
	if clientID != "" {
		n, err := parseID(clientID)
		if err != nil {
			return []domain.Goal{}, nil
		}
		q.Where = []condition{eq("client_id", n)}
	}
	var rows []goalRecord
	if err := c.query(ctx, tableGoal, q, &rows); err != nil {
		return nil, err
	}
	return convert[domain.Goal](rows), nil
}

func (c *Client) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	var row goalRecord
	if err := c.get(ctx, tableGoal, id, &row); err != nil {
		return nil, err
	}
	g := row.toDomain()
	return &g, nil
}

func (c *Client) CreateGoal(ctx context.Context, in domain.Goal) (domain.Goal, error) {
	if err := in.Validate(); err != nil {
		return domain.Goal{}, storage.Invalid(err)
	}
	clientID, err := refID("client_id", in.ClientID)
	if err != nil {
		return domain.Goal{}, err
	}
	rec := map[string]any{
		"Name":        in.Title,
		"title":       in.Title,
		"description": in.Description,
		"category":    in.Category,
		"status":      string(in.Status),
		"progress":    in.Progress,
		"client_id":   clientID,
	}
	if in.TargetDate != nil {
		rec["target_date"] = formatTime(*in.TargetDate)
	}
	var row goalRecord
	if err := c.write(ctx, http.MethodPost, tableGoal, rec, &row); err != nil {
		return domain.Goal{}, err
	}
	return row.toDomain(), nil
}

func (c *Client) UpdateGoal(ctx context.Context, id string, patch domain.GoalPatch) (*domain.Goal, error) {
	if err := patch.Validate(); err != nil {
		return nil, storage.Invalid(err)
	}
	n, err := parseID(id)
	if err != nil {
		return nil, fmt.Errorf("goal %s: %w", id, storage.ErrNotFound)
	}
	rec := map[string]any{"Id": n}
	if patch.Status != nil {
		rec["status"] = string(*patch.Status)
	}
	if patch.Progress != nil {
		rec["progress"] = *patch.Progress
	}
	var row goalRecord
	if err := c.write(ctx, http.MethodPatch, tableGoal, rec, &row); err != nil {
		return nil, err
	}
	g := row.toDomain()
	return &g, nil
}

// Resources

func (c *Client) ListResources(ctx context.Context) ([]domain.Resource, error) {
	var rows []resourceRecord
	if err := c.query(ctx, tableResource, queryRequest{OrderBy: []ordering{asc("Id")}}, &rows); err != nil {
		return nil, err
	}
	return convert[domain.Resource](rows), nil
}

func (c *Client) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	var row resourceRecord
	if err := c.get(ctx, tableResource, id, &row); err != nil {
		return nil, err
	}
	r := row.toDomain()
	return &r, nil
}

func (c *Client) CreateResource(ctx context.Context, in domain.Resource) (domain.Resource, error) {
	if err := in.Validate(); err != nil {
		return domain.Resource{}, storage.Invalid(err)
	}
	rec := map[string]any{
		"Name":         in.Title,
		"title":        in.Title,
		"type":         string(in.Type),
		"category":     in.Category,
		"description":  in.Description,
		"media_url":    in.MediaURL,
		"duration":     in.Duration,
		"read_time":    in.ReadTime,
		"downloadable": in.Downloadable,
		"difficulty":   string(in.Difficulty),
	}
	var row resourceRecord
	if err := c.write(ctx, http.MethodPost, tableResource, rec, &row); err != nil {
		return domain.Resource{}, err
	}
	return row.toDomain(), nil
}

// Interactions

func (c *Client) ListInteractions(ctx context.Context, clientID string) ([]domain.Interaction, error) {
	q := queryRequest{OrderBy: []ordering{desc("timestamp")}}
	if clientID != "" {
		n, err := parseID(clientID)
		if err != nil {
			return []domain.Interaction{}, nil
		}
		q.Where = []condition{eq("client_id", n)}
	}
	var rows []interactionRecord
	if err := c.query(ctx, tableInteraction, q, &rows); err != nil {
		return nil, err
	}
	return convert[domain.Interaction](rows), nil
}

func (c *Client) CreateInteraction(ctx context.Context, in domain.Interaction) (domain.Interaction, error) {
	if err := in.Validate(); err != nil {
		return domain.Interaction{}, storage.Invalid(err)
	}
	clientID, err := refID("client_id", in.ClientID)
	if err != nil {
		return domain.Interaction{}, err
	}
	resourceID, err := refID("resource_id", in.ResourceID)
	if err != nil {
		return domain.Interaction{}, err
	}
	rec := map[string]any{
		"Name":        string(in.Type),
		"client_id":   clientID,
		"resource_id": resourceID,
		"type":        string(in.Type),
	}
	if !in.Timestamp.IsZero() {
		rec["timestamp"] = formatTime(in.Timestamp)
	}
	var row interactionRecord
	if err := c.write(ctx, http.MethodPost, tableInteraction, rec, &row); err != nil {
		return domain.Interaction{}, err
	}
	return row.toDomain(), nil
}

// Recommendations

func (c *Client) CreateRecommendation(ctx context.Context, in domain.Recommendation) (domain.Recommendation, error) {
	if err := in.Validate(); err != nil {
		return domain.Recommendation{}, storage.Invalid(err)
	}
	clientID, err := refID("client_id", in.ClientID)
	if err != nil {
		return domain.Recommendation{}, err
	}
	resourceID, err := refID("resource_id", in.ResourceID)
	if err != nil {
		return domain.Recommendation{}, err
	}
	rec := map[string]any{
		"Name":        "Recommendation for client " + in.ClientID,
		"client_id":   clientID,
		"resource_id": resourceID,
		"goal_id":     nil,
		"score":       in.Score,
		"accepted":    in.Accepted,
	}
	if in.GoalID != nil {
		goalID, err := refID("goal_id", *in.GoalID)
		if err != nil {
			return domain.Recommendation{}, err
		}
		rec["goal_id"] = goalID
	}
	if !in.RecommendationDate.IsZero() {
		rec["recommendation_date"] = formatTime(in.RecommendationDate)
	}
	var row recommendationRecord
	if err := c.write(ctx, http.MethodPost, tableRecommendation, rec, &row); err != nil {
		return domain.Recommendation{}, err
	}
	return row.toDomain(), nil
}

func (c *Client) GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error) {
	var row recommendationRecord
	if err := c.get(ctx, tableRecommendation, id, &row); err != nil {
		return nil, err
	}
	r := row.toDomain()
	return &r, nil
}

// ListRecommendations maps the filters onto one equality or is-null
// condition per field and a single descending sort.
func (c *Client) ListRecommendations(ctx context.Context, filters domain.RecommendationFilters) ([]domain.Recommendation, error) {
	var q queryRequest
	if filters.ClientID != "" {
		n, err := parseID(filters.ClientID)
		if err != nil {
			return []domain.Recommendation{}, nil
		}
		q.Where = append(q.Where, eq("client_id", n))
	}
	switch filters.Status {
	case domain.DispositionPending:
		q.Where = append(q.Where, isNull("accepted"))
	case domain.DispositionAccepted:
		q.Where = append(q.Where, eq("accepted", true))
	case domain.DispositionDeclined:
		q.Where = append(q.Where, eq("accepted", false))
	}
	if filters.OrderBy == domain.OrderByScore {
		q.OrderBy = []ordering{desc("score")}
	} else {
		q.OrderBy = []ordering{desc("recommendation_date")}
	}

	var rows []recommendationRecord
	if err := c.query(ctx, tableRecommendation, q, &rows); err != nil {
		return nil, err
	}
	return convert[domain.Recommendation](rows), nil
}

// UpdateRecommendation sends only the fields present in patch.
func (c *Client) UpdateRecommendation(ctx context.Context, id string, patch domain.RecommendationPatch) (*domain.Recommendation, error) {
	if err := patch.Validate(); err != nil {
		return nil, storage.Invalid(err)
	}
	n, err := parseID(id)
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", id, storage.ErrNotFound)
	}
	rec := map[string]any{"Id": n}
	if patch.ClientID != nil {
		v, err := refID("client_id", *patch.ClientID)
		if err != nil {
			return nil, err
		}
		rec["client_id"] = v
	}
	if patch.ResourceID != nil {
		v, err := refID("resource_id", *patch.ResourceID)
		if err != nil {
			return nil, err
		}
		rec["resource_id"] = v
	}
	if patch.GoalID != nil {
		if *patch.GoalID == "" {
			rec["goal_id"] = nil
		} else {
			v, err := refID("goal_id", *patch.GoalID)
			if err != nil {
				return nil, err
			}
			rec["goal_id"] = v
		}
	}
	if patch.RecommendationDate != nil {
		rec["recommendation_date"] = formatTime(*patch.RecommendationDate)
	}
	if patch.Score != nil {
		rec["score"] = *patch.Score
	}
	if patch.Disposition != nil {
		rec["accepted"] = *patch.Disposition == domain.DispositionAccepted
	}

	var row recommendationRecord
	if err := c.write(ctx, http.MethodPatch, tableRecommendation, rec, &row); err != nil {
		return nil, err
	}
	r := row.toDomain()
	return &r, nil
}

func (c *Client) DeleteRecommendation(ctx context.Context, id string) error {
	return c.remove(ctx, tableRecommendation, id)
}
