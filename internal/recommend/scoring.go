// Package recommend ranks catalog resources for a client, persists the top
// entries as recommendations, and moves them through their lifecycle.
package recommend

import (
	"wellcoach/internal/domain"
)

// Scoring weights.
const (
	BaseScore          = 10
	CategoryMatchBonus = 25
	DifficultyFitBonus = 15
	NoveltyBonus       = 5
	RepeatPenalty      = 2 // per prior interaction with the resource
	VideoBonus         = 3
	ArticleBonus       = 2

	// PersistThreshold is exclusive: only scores above it are persisted.
	PersistThreshold = 15
	// MaxScore caps persisted scores.
	MaxScore = 100
)

// Breakdown is a score split into its terms. Total is the sum of the other
// score fields and may be negative.
type Breakdown struct {
	Base          int `json:"base"`
	CategoryMatch int `json:"categoryMatch"`
	DifficultyFit int `json:"difficultyFit"`
	Interaction   int `json:"interaction"`
	TypeBonus     int `json:"typeBonus"`
	Total         int `json:"total"`

	// Interactions is the number of prior interactions with the resource.
	Interactions int `json:"interactions"`
}

// Score returns the affinity of one resource for a client. It is pure and
// order-independent over goals and interactions, and never clamps.
func Score(goals []domain.Goal, interactions []domain.Interaction, r domain.Resource) int {
	return Explain(goals, interactions, r).Total
}

// Explain is Score with each term reported separately.
func Explain(goals []domain.Goal, interactions []domain.Interaction, r domain.Resource) Breakdown {
	b := Breakdown{Base: BaseScore}

	for _, g := range goals {
		if !g.Active() {
			continue
		}
		if g.Category == r.Category {
			b.CategoryMatch += CategoryMatchBonus
		}
		if r.Difficulty != "" && r.Difficulty == band(g.Progress) {
			b.DifficultyFit += DifficultyFitBonus
		}
	}

	for _, in := range interactions {
		if in.ResourceID == r.ID {
			b.Interactions++
		}
	}
	if b.Interactions == 0 {
		b.Interaction = NoveltyBonus
	} else {
		b.Interaction = -RepeatPenalty * b.Interactions
	}

	switch r.Type {
	case domain.ResourceTypeVideo:
		b.TypeBonus = VideoBonus
	case domain.ResourceTypeArticle:
		b.TypeBonus = ArticleBonus
	}

	b.Total = b.Base + b.CategoryMatch + b.DifficultyFit + b.Interaction + b.TypeBonus
	return b
}

// band maps goal progress to the difficulty it rewards.
func band(progress int) domain.Difficulty {
	switch {
	case progress < 30:
		return domain.DifficultyBeginner
	case progress < 70:
		return domain.DifficultyIntermediate
	default:
		return domain.DifficultyAdvanced
	}
}
