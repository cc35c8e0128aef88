package scoring

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/models"
)

// Scorer computes the relevance of a funding opportunity to a case. It holds no
// per-call state and is safe for concurrent use.
type Scorer struct {
	oracle      ai.Oracle
	weights     Weights
	now         func() time.Time
	callTimeout time.Duration
}

type Option func(*Scorer)

func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithClock fixes "now" for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// WithCallTimeout bounds each oracle call. A timed out call scores Neutral.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scorer) { s.callTimeout = d }
}

func NewScorer(oracle ai.Oracle, opts ...Option) *Scorer {
	s := &Scorer{
		oracle:  oracle,
		weights: DefaultWeights(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score combines the four sub-scores, flags expiry and writes a justification.
func (s *Scorer) Score(ctx context.Context, c models.Case, opp models.FundingOpportunity) models.ScoringResult {
	comps := models.ScoreComponents{
		Semantic: s.guard(opp, "semantic", func() (float64, error) { return s.semanticScore(ctx, c, opp) }),
		Keyword:  s.guard(opp, "keyword", func() (float64, error) { return KeywordScore(c, opp), nil }),
		Category: s.guard(opp, "category", func() (float64, error) { return CategoryScore(c, opp), nil }),
		Budget:   s.guard(opp, "budget", func() (float64, error) { return BudgetScore(c, opp), nil }),
	}

	score := clamp01(comps.Semantic*s.weights.Semantic +
		comps.Keyword*s.weights.Keyword +
		comps.Category*s.weights.Category +
		comps.Budget*s.weights.Budget)

	return models.ScoringResult{
		Score:         score,
		IsExpired:     IsExpired(opp.Deadline, s.now()),
		Justification: s.justify(ctx, c, opp, score, comps),
		Components:    comps,
	}
}

// guard isolates one sub-score: errors and panics become Neutral plus a warning.
func (s *Scorer) guard(opp models.FundingOpportunity, component string, fn func() (float64, error)) float64 {
	v, err := func() (v float64, err error) {
		defer recoverAs(&err)
		return fn()
	}()
	if err != nil {
		zap.L().Warn("scoring: sub-score substituted with neutral value",
			zap.String("component", component),
			zap.String("opportunity", opp.Name),
			zap.Error(err),
		)
		return Neutral
	}
	return clamp01(v)
}

func (s *Scorer) semanticScore(ctx context.Context, c models.Case, opp models.FundingOpportunity) (float64, error) {
	caseText := strings.ToLower(c.Title + " " + c.Description)
	oppText := strings.ToLower(opp.Name + " " + opp.Description + " " + opp.EligibilityCriteria)

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.oracle.Complete(callCtx, semanticSystemPrompt,
		ai.UserPrompt(fmt.Sprintf(semanticPrompt, caseText, oppText)),
		ai.Options{Temperature: ai.Temperature(0.3), MaxTokens: 10})
	if err != nil {
		return Neutral, eris.Wrap(err, "scoring: semantic rating")
	}
	return ParseRating(resp)
}

var ratingPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// ParseRating reads the leading number of an oracle rating reply, clamped to [0,1].
func ParseRating(resp string) (float64, error) {
	m := ratingPattern.FindString(strings.TrimSpace(resp))
	if m == "" {
		return Neutral, eris.Errorf("scoring: no rating in reply %q", resp)
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return Neutral, eris.Wrapf(err, "scoring: parse rating %q", m)
	}
	return clamp01(v), nil
}

func (s *Scorer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func recoverAs(err *error) {
	if r := recover(); r != nil {
		*err = eris.Errorf("panic: %v", r)
	}
}
