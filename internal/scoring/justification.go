package scoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/models"
)

const justificationExcerpt = 500

// Reasons turns sub-scores that cross their thresholds into reason fragments.
func Reasons(c models.Case, comps models.ScoreComponents) []string {
	var reasons []string

	switch {
	case comps.Semantic > SemanticHighThreshold:
		reasons = append(reasons, "wysokie dopasowanie semantyczne do opisu wniosku")
	case comps.Semantic > SemanticPartialThreshold:
		reasons = append(reasons, "częściowe dopasowanie do opisu wniosku")
	}

	if comps.Keyword > KeywordThreshold {
		reasons = append(reasons, "zgodność kluczowych słów i terminów")
	}

	if comps.Category > CategoryThreshold {
		category := string(c.Category)
		if category == "" {
			category = "dofinansowanie"
		}
		reasons = append(reasons, "dopasowanie do kategorii: "+category)
	}

	switch {
	case comps.Budget > BudgetWithinThreshold:
		reasons = append(reasons, "budżet projektu mieści się w zakresie programu")
	case comps.Budget > BudgetPartialThreshold:
		reasons = append(reasons, "budżet projektu częściowo zgodny z programem")
	}

	return reasons
}

// FallbackJustification never fails and never returns empty text.
func FallbackJustification(reasons []string, score float64) string {
	percent := formatPercent(score)
	if len(reasons) == 0 {
		return fmt.Sprintf("Program częściowo dopasowany (%s dopasowania).", percent)
	}
	return fmt.Sprintf("Program wykazuje %s dopasowanie (%s) ze względu na: %s.",
		Tier(score), percent, strings.Join(reasons, ", "))
}

// Tier buckets a final score into the qualitative label used in justifications.
func Tier(score float64) string {
	switch {
	case score > TierHigh:
		return "wysokie"
	case score > TierGood:
		return "dobre"
	case score > TierModerate:
		return "umiarkowane"
	default:
		return "niskie"
	}
}

func formatPercent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

// justify asks the oracle to phrase the reasons and falls back to the template on
// any failure or empty reply.
func (s *Scorer) justify(ctx context.Context, c models.Case, opp models.FundingOpportunity, score float64, comps models.ScoreComponents) string {
	reasons := Reasons(c, comps)

	prompt := fmt.Sprintf(justificationPrompt,
		c.Title, ai.Truncate(c.Description, justificationExcerpt),
		opp.Name, ai.Truncate(opp.Description, justificationExcerpt),
		strings.Join(reasons, ", "), formatPercent(score))

	text, err := func() (text string, err error) {
		defer recoverAs(&err)
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		return s.oracle.Complete(callCtx, justificationSystemPrompt, ai.UserPrompt(prompt), ai.Options{
			Temperature: ai.Temperature(0.7),
			MaxTokens:   150,
		})
	}()
	if err != nil {
		zap.L().Warn("scoring: justification fell back to template",
			zap.String("opportunity", opp.Name), zap.Error(err))
		return FallbackJustification(reasons, score)
	}
	if text = strings.TrimSpace(text); text == "" {
		return FallbackJustification(reasons, score)
	}
	return text
}
