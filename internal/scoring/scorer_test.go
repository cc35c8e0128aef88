package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/ai/aitest"
	"github.com/david/casematch/internal/models"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }

func hallCase() models.Case {
	return models.Case{
		Title:       "Budowa hali sportowej",
		Description: "Wniosek o dofinansowanie 300000 zł na budowę hali sportowej w Krakowie",
		Category:    models.CategoryFunding,
	}
}

func hallProgram() models.FundingOpportunity {
	return models.FundingOpportunity{
		Name:        "Sportowa Polska",
		Description: "Dofinansowanie budowy hali sportowej, dotacja z funduszu",
		AmountRange: "100000-1000000",
		Deadline:    "31.12.2099",
	}
}

func TestScore_WeightedComposite(t *testing.T) {
	oracle := aitest.Routes("", map[string]string{
		"Oceń dopasowanie":     "0.9",
		"Napisz uzasadnienie": "Program finansuje budowę hal sportowych.",
	})
	s := NewScorer(oracle, WithClock(fixedNow))

	res := s.Score(context.Background(), hallCase(), hallProgram())

	assert.InDelta(t, 0.9, res.Components.Semantic, 1e-9)
	assert.InDelta(t, 0.375, res.Components.Keyword, 1e-9)
	assert.InDelta(t, 0.6, res.Components.Category, 1e-9)
	assert.InDelta(t, 1.0, res.Components.Budget, 1e-9)
	assert.InDelta(t, 0.72375, res.Score, 1e-9)
	assert.False(t, res.IsExpired)
	assert.Equal(t, "Program finansuje budowę hal sportowych.", res.Justification)

	calls := oracle.Calls()
	require.Len(t, calls, 2)
	semantic := calls[0]
	require.NotNil(t, semantic.Options.Temperature)
	assert.InDelta(t, 0.3, *semantic.Options.Temperature, 1e-9)
	assert.Equal(t, 10, semantic.Options.MaxTokens)
	assert.Contains(t, semantic.Prompt(), "budowa hali sportowej wniosek")

	justification := calls[1]
	assert.Equal(t, 150, justification.Options.MaxTokens)
	assert.Contains(t, justification.Prompt(), "wysokie dopasowanie semantyczne do opisu wniosku")
	assert.Contains(t, justification.Prompt(), "Score: 72%")
}

func TestScore_FailingOracleFallsBack(t *testing.T) {
	s := NewScorer(aitest.Failing(), WithClock(fixedNow))

	res := s.Score(context.Background(), hallCase(), hallProgram())

	assert.InDelta(t, Neutral, res.Components.Semantic, 1e-9)
	assert.InDelta(t, 0.56375, res.Score, 1e-9)
	assert.Equal(t,
		"Program wykazuje umiarkowane dopasowanie (56%) ze względu na: budżet projektu mieści się w zakresie programu.",
		res.Justification)
}

func TestScore_EmptyJustificationFallsBack(t *testing.T) {
	oracle := aitest.Routes("   ", map[string]string{"Oceń dopasowanie": "0.1"})
	res := NewScorer(oracle, WithClock(fixedNow)).Score(context.Background(), models.Case{Title: "x"}, models.FundingOpportunity{Name: "y"})
	assert.NotEmpty(t, res.Justification)
	assert.Contains(t, res.Justification, "Program częściowo dopasowany")
}

func TestScore_ClampsAndNeutralizes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"above one", "7", 1},
		{"negative", "-0.4", 0},
		{"comma decimal", "0,65", 0.65},
		{"not a number", "brak oceny", Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := aitest.Routes("ok", map[string]string{"Oceń dopasowanie": tt.reply})
			res := NewScorer(oracle, WithClock(fixedNow)).Score(context.Background(), hallCase(), hallProgram())
			assert.InDelta(t, tt.want, res.Components.Semantic, 1e-9)
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 1.0)
		})
	}
}

func TestScore_OraclePanicIsIsolated(t *testing.T) {
	oracle := &aitest.Oracle{Respond: func(aitest.Call) (string, error) { panic("boom") }}
	res := NewScorer(oracle, WithClock(fixedNow)).Score(context.Background(), hallCase(), hallProgram())
	assert.InDelta(t, Neutral, res.Components.Semantic, 1e-9)
	assert.NotEmpty(t, res.Justification)
}

type blockingOracle struct{}

func (blockingOracle) Complete(ctx context.Context, _ string, _ []ai.Message, _ ai.Options) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestScore_CallTimeoutIsNeutral(t *testing.T) {
	s := NewScorer(blockingOracle{}, WithClock(fixedNow), WithCallTimeout(10*time.Millisecond))
	res := s.Score(context.Background(), hallCase(), hallProgram())
	assert.InDelta(t, Neutral, res.Components.Semantic, 1e-9)
	assert.NotEmpty(t, res.Justification)
}

func TestScore_ExpiryDoesNotAffectScore(t *testing.T) {
	oracle := aitest.Routes("ok", map[string]string{"Oceń dopasowanie": "0.8"})
	s := NewScorer(oracle, WithClock(fixedNow))

	open := hallProgram()
	closed := hallProgram()
	closed.Deadline = "2024-01-01"

	a := s.Score(context.Background(), hallCase(), open)
	b := s.Score(context.Background(), hallCase(), closed)
	assert.False(t, a.IsExpired)
	assert.True(t, b.IsExpired)
	assert.InDelta(t, a.Score, b.Score, 1e-9)
}

func TestFallbackJustification(t *testing.T) {
	tests := []struct {
		reasons []string
		score   float64
		want    string
	}{
		{nil, 0.33, "Program częściowo dopasowany (33% dopasowania)."},
		{[]string{"a"}, 0.85, "Program wykazuje wysokie dopasowanie (85%) ze względu na: a."},
		{[]string{"a", "b"}, 0.7, "Program wykazuje dobre dopasowanie (70%) ze względu na: a, b."},
		{[]string{"a"}, 0.2, "Program wykazuje niskie dopasowanie (20%) ze względu na: a."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FallbackJustification(tt.reasons, tt.score))
	}
}

func TestReasons(t *testing.T) {
	got := Reasons(models.Case{}, models.ScoreComponents{Semantic: 0.6, Keyword: 0.7, Category: 0.8, Budget: 0.6})
	assert.Equal(t, []string{
		"częściowe dopasowanie do opisu wniosku",
		"zgodność kluczowych słów i terminów",
		"dopasowanie do kategorii: dofinansowanie",
		"budżet projektu częściowo zgodny z programem",
	}, got)
}
