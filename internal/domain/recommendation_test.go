package domain

import (
	"errors"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func TestRecommendationDisposition(t *testing.T) {
	tests := []struct {
		name     string
		accepted *bool
		want     Disposition
	}{
		{"nil is pending", nil, DispositionPending},
		{"true is accepted", boolPtr(true), DispositionAccepted},
		{"false is declined", boolPtr(false), DispositionDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Recommendation{Accepted: tt.accepted}
			if got := r.Disposition(); got != tt.want {
				t.Errorf("Disposition() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDisposition(t *testing.T) {
	tests := []struct {
		in     string
		want   Disposition
		wantOK bool
	}{
		{"", "", true},
		{"all", "", true},
		{"pending", DispositionPending, true},
		{"accepted", DispositionAccepted, true},
		{"declined", DispositionDeclined, true},
		{"archived", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDisposition(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseDisposition(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRecommendationPatchApply(t *testing.T) {
	goal := "g1"
	base := Recommendation{
		ID:         "r1",
		ClientID:   "c1",
		ResourceID: "res1",
		GoalID:     &goal,
		Score:      40,
	}

	t.Run("empty patch keeps everything", func(t *testing.T) {
		got := RecommendationPatch{}.Apply(base)
		if got.ClientID != "c1" || got.ResourceID != "res1" || got.Score != 40 || got.GoalID == nil || got.Accepted != nil {
			t.Errorf("unexpected change: %+v", got)
		}
	})

	t.Run("fields overwrite", func(t *testing.T) {
		score := 77
		when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		d := DispositionDeclined
		got := RecommendationPatch{Score: &score, RecommendationDate: &when, Disposition: &d}.Apply(base)
		if got.Score != 77 {
			t.Errorf("score = %d, want 77", got.Score)
		}
		if !got.RecommendationDate.Equal(when) {
			t.Errorf("date = %v, want %v", got.RecommendationDate, when)
		}
		if got.Disposition() != DispositionDeclined {
			t.Errorf("disposition = %q, want declined", got.Disposition())
		}
	})

	t.Run("empty goal id clears", func(t *testing.T) {
		empty := ""
		got := RecommendationPatch{GoalID: &empty}.Apply(base)
		if got.GoalID != nil {
			t.Errorf("goal id = %v, want nil", *got.GoalID)
		}
	})

	t.Run("does not alias patch pointer", func(t *testing.T) {
		other := "g2"
		got := RecommendationPatch{GoalID: &other}.Apply(base)
		other = "changed"
		if *got.GoalID != "g2" {
			t.Errorf("goal id = %q, want g2", *got.GoalID)
		}
	})
}

func TestRecommendationPatchValidate(t *testing.T) {
	pending := DispositionPending
	accepted := DispositionAccepted
	bogus := Disposition("maybe")
	empty := ""

	tests := []struct {
		name  string
		patch RecommendationPatch
		want  error
	}{
		{"empty", RecommendationPatch{}, nil},
		{"accept", RecommendationPatch{Disposition: &accepted}, nil},
		{"back to pending", RecommendationPatch{Disposition: &pending}, ErrPendingPatch},
		{"unknown disposition", RecommendationPatch{Disposition: &bogus}, ErrInvalidDisposition},
		{"empty client", RecommendationPatch{ClientID: &empty}, ErrEmptyClientID},
		{"empty resource", RecommendationPatch{ResourceID: &empty}, ErrEmptyResourceID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGoalValidate(t *testing.T) {
	if err := (Goal{ClientID: "c", Title: "Sleep", Progress: 101}).Validate(); !errors.Is(err, ErrProgressRange) {
		t.Errorf("expected ErrProgressRange, got %v", err)
	}
	if err := (Goal{Title: "Sleep"}).Validate(); !errors.Is(err, ErrEmptyClientID) {
		t.Errorf("expected ErrEmptyClientID, got %v", err)
	}
	if err := (Goal{ClientID: "c", Title: "Sleep", Progress: 100}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResourceValidate(t *testing.T) {
	tests := []struct {
		name string
		res  Resource
		want error
	}{
		{"ok without difficulty", Resource{Title: "Box breathing", Type: ResourceTypeAudio}, nil},
		{"missing title", Resource{Type: ResourceTypeVideo}, ErrEmptyTitle},
		{"bad type", Resource{Title: "x", Type: "podcast"}, ErrInvalidResourceType},
		{"bad difficulty", Resource{Title: "x", Type: ResourceTypeVideo, Difficulty: "Expert"}, ErrInvalidDifficulty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.res.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
