package domain

import (
	"errors"
	"time"
)

// Domain validation errors. Stores wrap these with storage.ErrValidation.
var (
	ErrEmptyTitle           = errors.New("title is required")
	ErrEmptyName            = errors.New("name is required")
	ErrEmptyClientID        = errors.New("client id is required")
	ErrEmptyResourceID      = errors.New("resource id is required")
	ErrEmptyInteractionType = errors.New("interaction type is required")
	ErrInvalidResourceType  = errors.New("resource type must be video, article, audio or worksheet")
	ErrInvalidDifficulty    = errors.New("difficulty must be Beginner, Intermediate or Advanced")
	ErrProgressRange        = errors.New("progress must be between 0 and 100")
	ErrPendingPatch         = errors.New("disposition cannot be reset to pending")
	ErrInvalidDisposition   = errors.New("disposition must be accepted or declined")
)

// GoalStatus is the lifecycle state of a client goal. Values other than the
// constants below are preserved as-is.
type GoalStatus string

const (
	GoalStatusInProgress GoalStatus = "in-progress"
	GoalStatusCompleted  GoalStatus = "completed"
)

// Goal is a client's coaching goal.
type Goal struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Status      GoalStatus `json:"status"`
	Progress    int        `json:"progress"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Active reports whether the goal contributes to scoring.
func (g Goal) Active() bool {
	return g.Status == GoalStatusInProgress
}

// Validate checks required fields and the progress range.
func (g Goal) Validate() error {
	if g.ClientID == "" {
		return ErrEmptyClientID
	}
	if g.Title == "" {
		return ErrEmptyTitle
	}
	if g.Progress < 0 || g.Progress > 100 {
		return ErrProgressRange
	}
	return nil
}

// GoalPatch carries optional goal changes. Nil fields are left untouched.
type GoalPatch struct {
	Status   *GoalStatus `json:"status,omitempty"`
	Progress *int        `json:"progress,omitempty"`
}

// Apply returns g with the non-nil patch fields written over it.
func (p GoalPatch) Apply(g Goal) Goal {
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Progress != nil {
		g.Progress = *p.Progress
	}
	return g
}

// Validate rejects out-of-range progress.
func (p GoalPatch) Validate() error {
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return ErrProgressRange
	}
	return nil
}
