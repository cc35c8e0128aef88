package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/casematch/internal/models"
	"github.com/david/casematch/internal/scoring"
)

// RankedOpportunity is a scored opportunity with its sub-scores.
type RankedOpportunity struct {
	models.FundingOpportunity
	Components models.ScoreComponents `json:"components"`
}

// Rank scores every opportunity against c concurrently and sorts by score,
// highest first, keeping discovery order for ties. A candidate whose scoring
// panics is kept with the neutral score and a fallback justification.
func (p *Pipeline) Rank(ctx context.Context, c models.Case, opps []models.FundingOpportunity) []RankedOpportunity {
	ranked := make([]RankedOpportunity, len(opps))
	if len(opps) == 0 {
		return ranked
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, opp := range opps {
		g.Go(func() error {
			ranked[i] = p.scoreOne(ctx, c, opp)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	return ranked
}

func (p *Pipeline) scoreOne(ctx context.Context, c models.Case, opp models.FundingOpportunity) (out RankedOpportunity) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: scoring panicked",
				zap.String("opportunity", opp.Name),
				zap.String("panic", fmt.Sprint(r)),
			)
			opp.RelevanceScore = scoring.Neutral
			opp.Justification = scoring.FallbackJustification(nil, scoring.Neutral)
			out = RankedOpportunity{FundingOpportunity: opp}
		}
	}()

	result := p.scorer.Score(ctx, c, opp)
	opp.RelevanceScore = result.Score
	opp.Justification = result.Justification
	opp.IsExpired = result.IsExpired
	return RankedOpportunity{FundingOpportunity: opp, Components: result.Components}
}
