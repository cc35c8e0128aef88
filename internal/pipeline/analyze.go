package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
)

// AnalyzeResult is what Analyze reports for a stored case.
type AnalyzeResult struct {
	Result
	Case     models.Case      `json:"case"`
	Analysis *models.Analysis `json:"analysis,omitempty"`
}

// Analyze matches a stored case to a procedure. On a match it records the
// analysis and moves the case to review with the matched procedure and category.
func (p *Pipeline) Analyze(ctx context.Context, caseID string) (AnalyzeResult, error) {
	c, err := p.loadCase(ctx, caseID)
	if err != nil {
		return AnalyzeResult{}, err
	}
	zap.L().Info("pipeline: analyzing case", zap.String("case_id", caseID), zap.String("title", c.Title))

	res, err := p.Match(ctx, c, nil)
	if err != nil {
		return AnalyzeResult{}, err
	}
	out := AnalyzeResult{Result: res, Case: c}
	if res.Outcome == OutcomeNoMatch {
		return out, nil
	}

	procID := res.Match.Procedure.ID
	analysis := models.Analysis{
		CaseID:             c.ID,
		MatchedProcedureID: &procID,
		ConfidenceScore:    res.Match.Score,
		Reasoning:          res.Guidance,
		MissingDocuments:   []string{},
		RiskFlags:          []string{},
	}
	rec, err := db.ToRecord(analysis)
	if err != nil {
		return AnalyzeResult{}, err
	}
	saved, err := p.store.Insert(ctx, db.TableAnalyses, rec)
	if err != nil {
		return AnalyzeResult{}, eris.Wrap(err, "pipeline: store analysis")
	}
	if analysis, err = db.Decode[models.Analysis](saved); err != nil {
		return AnalyzeResult{}, err
	}
	out.Analysis = &analysis

	patch := db.Record{
		"assigned_procedure_id": procID.String(),
		"status":                string(models.CaseStatusInReview),
	}
	if res.Classification.Category != "" {
		patch["category"] = string(res.Classification.Category)
	}
	if err := p.store.Update(ctx, db.TableCases, caseID, patch); err != nil {
		return AnalyzeResult{}, eris.Wrap(err, "pipeline: update case")
	}
	out.Case.AssignedProcedureID = &procID
	out.Case.Status = models.CaseStatusInReview
	if res.Classification.Category != "" {
		out.Case.Category = res.Classification.Category
	}

	zap.L().Info("pipeline: analysis complete",
		zap.String("case_id", caseID),
		zap.String("procedure", res.Match.Procedure.Name),
	)
	return out, nil
}
