package domain

import (
	"time"
)

// Disposition is the tri-state outcome of a recommendation. It is derived
// from Recommendation.Accepted and never stored on its own.
type Disposition string

const (
	DispositionPending  Disposition = "pending"
	DispositionAccepted Disposition = "accepted"
	DispositionDeclined Disposition = "declined"
)

// ParseDisposition maps a status filter value to a Disposition.
// "" and "all" return ok=true with an empty Disposition (no filter).
func ParseDisposition(s string) (Disposition, bool) {
	switch Disposition(s) {
	case "", "all":
		return "", true
	case DispositionPending, DispositionAccepted, DispositionDeclined:
		return Disposition(s), true
	}
	return "", false
}

// Recommendation is a scored resource suggested to a client.
// Accepted is nil while pending, true once accepted, false once declined.
type Recommendation struct {
	ID                 string    `json:"id"`
	ClientID           string    `json:"clientId"`
	ResourceID         string    `json:"resourceId"`
	GoalID             *string   `json:"goalId"`
	Score              int       `json:"score"`
	RecommendationDate time.Time `json:"recommendationDate"`
	Accepted           *bool     `json:"accepted"`
}

// Disposition reports the recommendation's current state.
func (r Recommendation) Disposition() Disposition {
	switch {
	case r.Accepted == nil:
		return DispositionPending
	case *r.Accepted:
		return DispositionAccepted
	default:
		return DispositionDeclined
	}
}

// Validate checks the references every stored recommendation must carry.
func (r Recommendation) Validate() error {
	if r.ClientID == "" {
		return ErrEmptyClientID
	}
	if r.ResourceID == "" {
		return ErrEmptyResourceID
	}
	return nil
}

// RecommendationPatch is a partial update. Nil fields keep the stored value.
type RecommendationPatch struct {
	ClientID           *string      `json:"clientId,omitempty"`
	ResourceID         *string      `json:"resourceId,omitempty"`
	GoalID             *string      `json:"goalId,omitempty"`
	RecommendationDate *time.Time   `json:"recommendationDate,omitempty"`
	Score              *int         `json:"score,omitempty"`
	Disposition        *Disposition `json:"disposition,omitempty"`
}

// Validate rejects empty references and any attempt to move back to pending.
func (p RecommendationPatch) Validate() error {
	if p.ClientID != nil && *p.ClientID == "" {
		return ErrEmptyClientID
	}
	if p.ResourceID != nil && *p.ResourceID == "" {
		return ErrEmptyResourceID
	}
	if p.Disposition != nil {
		switch *p.Disposition {
		case DispositionAccepted, DispositionDeclined:
		case DispositionPending:
			return ErrPendingPatch
		default:
			return ErrInvalidDisposition
		}
	}
	return nil
}

// Apply returns r with every non-nil patch field written over it.
// An empty GoalID clears the goal reference.
func (p RecommendationPatch) Apply(r Recommendation) Recommendation {
	if p.ClientID != nil {
		r.ClientID = *p.ClientID
	}
	if p.ResourceID != nil {
		r.ResourceID = *p.ResourceID
	}
	if p.GoalID != nil {
		if *p.GoalID == "" {
			r.GoalID = nil
		} else {
			id := *p.GoalID
			r.GoalID = &id
		}
	}
	if p.RecommendationDate != nil {
		r.RecommendationDate = *p.RecommendationDate
	}
	if p.Score != nil {
		r.Score = *p.Score
	}
	if p.Disposition != nil {
		accepted := *p.Disposition == DispositionAccepted
		r.Accepted = &accepted
	}
	return r
}

// RecommendationOrder selects the sort column for stored listings.
type RecommendationOrder string

const (
	OrderByDate  RecommendationOrder = "date"
	OrderByScore RecommendationOrder = "score"
)

// RecommendationFilters narrows a stored listing. Zero values mean no filter;
// the default order is newest recommendation first.
type RecommendationFilters struct {
	ClientID string
	Status   Disposition
	OrderBy  RecommendationOrder
}
