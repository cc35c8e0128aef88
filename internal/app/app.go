// Package app assembles the record store, oracle, pipeline and auth from
// configuration. The server and the command-line tools share it.
package app

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/auth"
	"github.com/david/casematch/internal/config"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/pipeline"
	"github.com/david/casematch/internal/research"
	"github.com/david/casematch/internal/retrieval"
	"github.com/david/casematch/internal/scoring"
)

type App struct {
	Store    db.RecordStore
	Oracle   ai.Oracle
	Scorer   *scoring.Scorer
	Pipeline *pipeline.Pipeline
	Auth     *auth.Authenticator

	closers []func()
}

// Build wires every component named by cfg. Close releases the database pool.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	store, err := a.openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Store = store

	oracle, err := ai.NewOracle(cfg.Oracle.AIConfig())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Oracle = oracle

	var embedder ai.Embedder
	if e, ok := oracle.(ai.Embedder); ok {
		embedder = e
	}

	svc, err := newResearch(cfg.Research)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Scorer = scoring.NewScorer(oracle, scoring.WithCallTimeout(cfg.Oracle.Timeout()))
	a.Pipeline = pipeline.New(pipeline.Deps{
		Store:      store,
		Classifier: ai.NewClassifier(oracle),
		Retriever:  retrieval.NewRetriever(store),
		Scorer:     a.Scorer,
		Extractor:  ai.NewExtractor(oracle),
		Guide:      ai.NewGuide(oracle),
		Research:   svc,
		Embedder:   embedder,
	}, cfg.Pipeline)

	a.Auth, err = auth.New(cfg.Auth.JWTSecret, cfg.Auth.AdminSecretHash)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.DatabaseConfig) (db.RecordStore, error) {
	if cfg.Memory {
		zap.L().Warn("app: using in-memory record store, data is lost on exit")
		return db.NewMemoryStore(), nil
	}

	pool, err := db.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		a.Close()
		return nil, eris.Wrap(err, "app: migrate")
	}
	return db.NewPostgresStore(pool), nil
}

// newResearch returns nil when no search API key is configured.
func newResearch(cfg config.ResearchConfig) (*research.Service, error) {
	if cfg.ExaKey == "" {
		zap.L().Info("app: research disabled, no search api key configured")
		return nil, nil
	}
	registry, err := research.LoadRegistry(cfg.QueriesFile)
	if err != nil {
		return nil, err
	}
	var enricher *research.Enricher
	if cfg.FetchPages {
		enricher = research.NewEnricher(research.NewCollyFetcher())
	}
	client := research.NewExaClient(cfg.BaseURL, cfg.ExaKey, cfg.NumResults)
	return research.NewService(client, registry, enricher, cfg.ServiceConfig()), nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
