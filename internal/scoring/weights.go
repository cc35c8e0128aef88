package scoring

import (
	"math"

	"github.com/rotisserie/eris"
)

// Neutral substitutes any sub-score that cannot be computed.
const Neutral = 0.5

// Reason thresholds on sub-scores.
const (
	SemanticHighThreshold    = 0.7
	SemanticPartialThreshold = 0.5
	KeywordThreshold         = 0.6
	CategoryThreshold        = 0.7
	BudgetWithinThreshold    = 0.8
	BudgetPartialThreshold   = 0.5
	FallbackReasonThreshold  = 0.5
)

// Tier cut-offs on the final score for the fallback justification.
const (
	TierHigh     = 0.8
	TierGood     = 0.6
	TierModerate = 0.4
)

// Budget sub-score outcomes against an extracted range. Above-range is penalized
// harder than below-range, where own contribution can close the gap.
const (
	BudgetInRange    = 1.0
	BudgetBelowRange = 0.3
	BudgetAboveRange = 0.2
)

// Weights of the four sub-scores in the final relevance score.
type Weights struct {
	Semantic float64 `mapstructure:"semantic" json:"semantic"`
	Keyword  float64 `mapstructure:"keyword" json:"keyword"`
	Category float64 `mapstructure:"category" json:"category"`
	Budget   float64 `mapstructure:"budget" json:"budget"`
}

func DefaultWeights() Weights {
	return Weights{
		Semantic: 0.40,
		Keyword:  0.25,
		Category: 0.20,
		Budget:   0.15,
	}
}

// ValidateWeights rejects negative weights and sets that do not sum to 1.
func ValidateWeights(w Weights) error {
	for name, v := range map[string]float64{
		"semantic": w.Semantic,
		"keyword":  w.Keyword,
		"category": w.Category,
		"budget":   w.Budget,
	} {
		if v < 0 {
			return eris.Errorf("scoring: weight %s is negative (%v)", name, v)
		}
	}
	sum := w.Semantic + w.Keyword + w.Category + w.Budget
	if math.Abs(sum-1) > 0.001 {
		return eris.Errorf("scoring: weights sum to %.3f, want 1", sum)
	}
	return nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return Neutral
	}
	return math.Max(0, math.Min(1, v))
}
