// Package pipeline sequences classification, procedure retrieval, relevance
// scoring and research for a case, and persists the results.
package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
	"github.com/david/casematch/internal/research"
	"github.com/david/casematch/internal/retrieval"
	"github.com/david/casematch/internal/scoring"
)

const (
	DefaultMaxCandidates = 8
	DefaultConcurrency   = 4

	maxProcedureSources = 5
	rawDescriptionLimit = 500
	defaultProgramName  = "Program dofinansowania"

	// NoMatchMessage is reported to users when no procedure fits a case.
	NoMatchMessage = "Nie znaleziono pasującej procedury"
)

// Outcome distinguishes a matched case from the valid "no match" result.
type Outcome string

const (
	OutcomeMatched Outcome = "matched"
	OutcomeNoMatch Outcome = "no_match"
)

type Config struct {
	// MaxCandidates bounds how many research documents become scored opportunities.
	MaxCandidates int `mapstructure:"max_candidates"`
	// Concurrency bounds parallel scoring and extraction.
	Concurrency int `mapstructure:"concurrency"`
}

// Deps are the collaborators of a Pipeline. Research and Embedder are optional.
type Deps struct {
	Store      db.RecordStore
	Classifier *ai.Classifier
	Retriever  *retrieval.Retriever
	Scorer     *scoring.Scorer
	Extractor  *ai.Extractor
	Guide      *ai.Guide
	Research   *research.Service
	Embedder   ai.Embedder
}

type Pipeline struct {
	store      db.RecordStore
	classifier *ai.Classifier
	retriever  *retrieval.Retriever
	scorer     *scoring.Scorer
	extractor  *ai.Extractor
	guide      *ai.Guide
	research   *research.Service
	embedder   ai.Embedder
	cfg        Config
}

// ErrResearchUnavailable is returned by research operations when no research
// backend is configured.
var ErrResearchUnavailable = errors.New("research backend not configured")

func New(deps Deps, cfg Config) *Pipeline {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		store:      deps.Store,
		classifier: deps.Classifier,
		retriever:  deps.Retriever,
		scorer:     deps.Scorer,
		extractor:  deps.Extractor,
		guide:      deps.Guide,
		research:   deps.Research,
		embedder:   deps.Embedder,
		cfg:        cfg,
	}
}

// Result is the outcome of matching one case.
type Result struct {
	Outcome        Outcome               `json:"outcome"`
	Classification models.Classification `json:"classification"`
	Match          *retrieval.Match      `json:"match,omitempty"`
	Guidance       string                `json:"guidance,omitempty"`
	Ranked         []RankedOpportunity   `json:"ranked,omitempty"`
}

// Match classifies c, selects its best procedure and ranks candidates against
// it. A missing procedure ends the run with OutcomeNoMatch before any guidance or
// scoring. Classification and record-store failures are returned as errors.
func (p *Pipeline) Match(ctx context.Context, c models.Case, candidates []models.FundingOpportunity) (Result, error) {
	log := zap.L().With(zap.String("case_id", c.ID.String()))

	classification, err := p.classifier.Classify(ctx, c.Description)
	if err != nil {
		return Result{}, err
	}
	log.Info("pipeline: case classified",
		zap.String("category", string(classification.Category)),
		zap.Float64("confidence", classification.Confidence),
	)

	procs, err := p.retriever.Retrieve(ctx, classification)
	if err != nil {
		return Result{}, err
	}
	log.Info("pipeline: procedures retrieved", zap.Int("count", len(procs)))

	match, ok := retrieval.FindBestMatch(procs, classification.ExtractedDetails)
	if !ok {
		log.Warn("pipeline: no matching procedure", zap.Error(retrieval.ErrNoCandidate))
		return Result{Outcome: OutcomeNoMatch, Classification: classification}, nil
	}
	log.Info("pipeline: best match selected",
		zap.String("procedure", match.Procedure.Name),
		zap.Float64("score", match.Score),
	)

	guidance, err := p.guide.GenerateGuidance(ctx, c, &match.Procedure, nil)
	if err != nil {
		log.Warn("pipeline: guidance generation failed", zap.Error(err))
		guidance = ""
	}

	if classification.Category != "" {
		c.Category = classification.Category
	}
	return Result{
		Outcome:        OutcomeMatched,
		Classification: classification,
		Match:          &match,
		Guidance:       guidance,
		Ranked:         p.Rank(ctx, c, candidates),
	}, nil
}

func (p *Pipeline) loadCase(ctx context.Context, caseID string) (models.Case, error) {
	rec, err := p.store.Get(ctx, db.TableCases, caseID)
	if err != nil {
		return models.Case{}, eris.Wrap(err, "pipeline: load case")
	}
	return db.Decode[models.Case](rec)
}
