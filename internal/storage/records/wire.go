package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wellcoach/internal/domain"
	"wellcoach/internal/storage"
)

// isoLayout matches what browsers send for dates: millisecond precision, UTC.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(isoLayout) }

// parseTime accepts full timestamps and bare dates.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// refID converts a domain reference to the service's integer id.
func refID(field, id string) (int64, error) {
	n, err := parseID(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a record id", storage.ErrValidation, field, id)
	}
	return n, nil
}

func formatID(n int64) string { return strconv.FormatInt(n, 10) }

// ref is a reference field. The service returns either a bare id or an
// object carrying the id and display name.
type ref struct {
	ID   int64
	Name string
	Set  bool
}

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ref{}
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ID   json.Number `json:"Id"`
			Name string      `json:"Name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		n, err := obj.ID.Int64()
		if err != nil {
			return fmt.Errorf("reference id: %w", err)
		}
		*r = ref{ID: n, Name: obj.Name, Set: true}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		// Some tables hand back ids as strings.
		var s string
		if err2 := json.Unmarshal(b, &s); err2 != nil {
			return err
		}
		num = json.Number(s)
	}
	n, err := num.Int64()
	if err != nil {
		return fmt.Errorf("reference id: %w", err)
	}
	*r = ref{ID: n, Set: true}
	return nil
}

func (r ref) id() string {
	if !r.Set {
		return ""
	}
	return formatID(r.ID)
}

type clientRecord struct {
	ID           int64  `json:"Id"`
	Name         string `json:"Name"`
	Email        string `json:"email"`
	Avatar       string `json:"avatar"`
	JoinDate     string `json:"join_date"`
	Status       string `json:"status"`
	Practitioner string `json:"practitioner"`
}

func (r clientRecord) toDomain() domain.Client {
	return domain.Client{
		ID:           formatID(r.ID),
		Name:         r.Name,
		Email:        r.Email,
		Avatar:       r.Avatar,
		Status:       domain.ClientStatus(r.Status),
		Practitioner: r.Practitioner,
		JoinDate:     parseTime(r.JoinDate),
	}
}

type goalRecord struct {
	ID          int64   `json:"Id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	TargetDate  *string `json:"target_date"`
	Progress    int     `json:"progress"`
	Status      string  `json:"status"`
	ClientID    ref     `json:"client_id"`
	CreatedOn   string  `json:"CreatedOn"`
}

func (r goalRecord) toDomain() domain.Goal {
	g := domain.Goal{
		ID:          formatID(r.ID),
		ClientID:    r.ClientID.id(),
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Status:      domain.GoalStatus(r.Status),
		Progress:    r.Progress,
		CreatedAt:   parseTime(r.CreatedOn),
	}
	if r.TargetDate != nil && *r.TargetDate != "" {
		t := parseTime(*r.TargetDate)
		g.TargetDate = &t
	}
	return g
}

type resourceRecord struct {
	ID           int64  `json:"Id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	MediaURL     string `json:"media_url"`
	Duration     int    `json:"duration"`
	ReadTime     int    `json:"read_time"`
	Downloadable bool   `json:"downloadable"`
	Difficulty   string `json:"difficulty"`
	CreatedOn    string `json:"CreatedOn"`
}

func (r resourceRecord) toDomain() domain.Resource {
	return domain.Resource{
		ID:           formatID(r.ID),
		Title:        r.Title,
		Category:     r.Category,
		Type:         domain.ResourceType(r.Type),
		Difficulty:   domain.Difficulty(r.Difficulty),
		Description:  r.Description,
		MediaURL:     r.MediaURL,
		Duration:     r.Duration,
		ReadTime:     r.ReadTime,
		Downloadable: r.Downloadable,
		CreatedAt:    parseTime(r.CreatedOn),
	}
}

type interactionRecord struct {
	ID         int64  `json:"Id"`
	ClientID   ref    `json:"client_id"`
	ResourceID ref    `json:"resource_id"`
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"`
}

func (r interactionRecord) toDomain() domain.Interaction {
	return domain.Interaction{
		ID:         formatID(r.ID),
		ClientID:   r.ClientID.id(),
		ResourceID: r.ResourceID.id(),
		Type:       domain.InteractionType(r.Type),
		Timestamp:  parseTime(r.Timestamp),
	}
}

type recommendationRecord struct {
	ID                 int64  `json:"Id"`
	ClientID           ref    `json:"client_id"`
	ResourceID         ref    `json:"resource_id"`
	GoalID             ref    `json:"goal_id"`
	RecommendationDate string `json:"recommendation_date"`
	Score              int    `json:"score"`
	Accepted           *bool  `json:"accepted"`
}

func (r recommendationRecord) toDomain() domain.Recommendation {
	rec := domain.Recommendation{
		ID:                 formatID(r.ID),
		ClientID:           r.ClientID.id(),
		ResourceID:         r.ResourceID.id(),
		Score:              r.Score,
		RecommendationDate: parseTime(r.RecommendationDate),
		Accepted:           r.Accepted,
	}
	if r.GoalID.Set {
		id := r.GoalID.id()
		rec.GoalID = &id
	}
	return rec
}

func convert[T any, R interface{ toDomain() T }](rows []R) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
