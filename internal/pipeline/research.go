package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
	"github.com/david/casematch/internal/research"
)

// ResearchFunding searches for funding programs for a stored case, extracts up
// to MaxCandidates of them, ranks them against the case and stores the ranking.
// A document the oracle cannot structure is still ranked from its raw text.
func (p *Pipeline) ResearchFunding(ctx context.Context, caseID string) ([]RankedOpportunity, error) {
	if p.research == nil {
		return nil, ErrResearchUnavailable
	}
	c, err := p.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("case_id", caseID))

	docs, err := p.research.Funding(ctx, research.CaseQuery{
		Title:       c.Title,
		Description: c.Description,
		Category:    string(c.Category),
	})
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: funding research returned", zap.Int("documents", len(docs)))
	if len(docs) > p.cfg.MaxCandidates {
		docs = docs[:p.cfg.MaxCandidates]
	}

	opps := p.extractOpportunities(ctx, c, docs)
	ranked := p.Rank(ctx, c, opps)

	for i := range ranked {
		rec, err := db.ToRecord(ranked[i].FundingOpportunity)
		if err != nil {
			return nil, err
		}
		if len(ranked[i].Embedding) > 0 {
			rec["embedding"] = ranked[i].Embedding
		}
		saved, err := p.store.Insert(ctx, db.TableFundingOpportunities, rec)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: store funding opportunity")
		}
		if stored, err := db.Decode[models.FundingOpportunity](saved); err == nil {
			stored.Embedding = ranked[i].Embedding
			ranked[i].FundingOpportunity = stored
		}
	}
	log.Info("pipeline: funding opportunities ranked", zap.Int("count", len(ranked)))
	return ranked, nil
}

func (p *Pipeline) extractOpportunities(ctx context.Context, c models.Case, docs []research.Document) []models.FundingOpportunity {
	opps := make([]models.FundingOpportunity, len(docs))
	keep := make([]bool, len(docs))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			opp, ok := p.extractOne(ctx, doc)
			if !ok {
				return nil
			}
			opp.CaseID = &c.ID
			opp.Embedding = p.embed(ctx, opp.Name+"\n"+opp.Description)
			opps[i], keep[i] = opp, true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.FundingOpportunity, 0, len(docs))
	for i := range opps {
		if keep[i] {
			out = append(out, opps[i])
		}
	}
	return out
}

// extractOne returns false only for documents that plainly name no program.
func (p *Pipeline) extractOne(ctx context.Context, doc research.Document) (opp models.FundingOpportunity, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: extraction panicked", zap.String("url", doc.URL), zap.String("panic", fmt.Sprint(r)))
			opp, ok = rawOpportunity(doc), true
		}
	}()

	opp, err := p.extractor.ExtractOpportunity(ctx, doc.URL, doc.Title, doc.Text)
	switch {
	case err == nil:
		return sanitizeOpportunity(opp), true
	case errors.Is(err, ai.ErrNothingExtracted):
		zap.L().Debug("pipeline: no program in document", zap.String("url", doc.URL))
		return models.FundingOpportunity{}, false
	}
	zap.L().Warn("pipeline: extraction failed, using raw document", zap.String("url", doc.URL), zap.Error(err))
	return rawOpportunity(doc), true
}

func rawOpportunity(doc research.Document) models.FundingOpportunity {
	name := research.StripMarkup(doc.Title)
	if name == "" {
		name = defaultProgramName
	}
	return models.FundingOpportunity{
		Name:        name,
		Description: ai.Truncate(research.StripMarkup(doc.Text), rawDescriptionLimit),
		SourceURL:   doc.URL,
		SourceTitle: doc.Title,
	}
}

func sanitizeOpportunity(opp models.FundingOpportunity) models.FundingOpportunity {
	opp.Name = research.StripMarkup(opp.Name)
	opp.Description = research.StripMarkup(opp.Description)
	opp.AmountRange = research.StripMarkup(opp.AmountRange)
	opp.EligibilityCriteria = research.StripMarkup(opp.EligibilityCriteria)
	opp.Deadline = research.StripMarkup(opp.Deadline)
	opp.ContactInfo = research.StripMarkup(opp.ContactInfo)
	return opp
}

// embed returns nil when no embedder is configured or the call fails.
func (p *Pipeline) embed(ctx context.Context, text string) []float32 {
	if p.embedder == nil {
		return nil
	}
	vec, err := p.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		zap.L().Debug("pipeline: embedding failed", zap.Error(err))
		return nil
	}
	return vec
}

// ResearchProcedures searches for administrative procedures, extracts up to five
// and adds them to the catalog.
func (p *Pipeline) ResearchProcedures(ctx context.Context) ([]models.Procedure, error) {
	if p.research == nil {
		return nil, ErrResearchUnavailable
	}
	docs, err := p.research.Procedures(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline: procedure research returned", zap.Int("documents", len(docs)))
	if len(docs) > maxProcedureSources {
		docs = docs[:maxProcedureSources]
	}

	saved := make([]models.Procedure, 0, len(docs))
	for _, doc := range docs {
		proc, err := p.extractor.ExtractProcedure(ctx, doc.URL, doc.Text)
		if err != nil {
			zap.L().Warn("pipeline: procedure extraction skipped", zap.String("url", doc.URL), zap.Error(err))
			continue
		}
		proc.Name = research.StripMarkup(proc.Name)
		proc.Description = research.StripMarkup(proc.Description)

		rec, err := db.ToRecord(proc)
		if err != nil {
			return nil, err
		}
		if vec := p.embed(ctx, proc.Name+"\n"+proc.Description); len(vec) > 0 {
			rec["embedding"] = vec
		}
		stored, err := p.store.Insert(ctx, db.TableProcedures, rec)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: store procedure")
		}
		decoded, err := db.Decode[models.Procedure](stored)
		if err != nil {
			return nil, err
		}
		saved = append(saved, decoded)
	}
	zap.L().Info("pipeline: procedures stored", zap.Int("count", len(saved)))
	return saved, nil
}
