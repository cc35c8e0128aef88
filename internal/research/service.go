package research

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultMaxResults = 10

// Config tunes a Service.
type Config struct {
	// RateLimitRPS bounds how many queries per second are sent to the backend.
	RateLimitRPS float64
	// MaxResults caps the deduplicated funding results.
	MaxResults int
}

// Service runs the registered query sets against a Researcher.
type Service struct {
	researcher Researcher
	registry   *Registry
	limiter    *rate.Limiter
	enricher   *Enricher
	maxResults int
}

// NewService builds a Service. enricher may be nil.
func NewService(researcher Researcher, registry *Registry, enricher *Enricher, cfg Config) *Service {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Service{
		researcher: researcher,
		registry:   registry,
		limiter:    rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/rps)), 1),
		enricher:   enricher,
		maxResults: maxResults,
	}
}

// Procedures returns every hit for the procedure queries, in query order.
func (s *Service) Procedures(ctx context.Context) ([]Document, error) {
	docs, err := s.run(ctx, s.registry.Procedures)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, docs), nil
}

// Funding returns up to MaxResults hits for the case's funding queries, unique by
// URL, first occurrence kept.
func (s *Service) Funding(ctx context.Context, q CaseQuery) ([]Document, error) {
	queries, err := s.registry.FundingQueries(q)
	if err != nil {
		return nil, err
	}
	docs, err := s.run(ctx, queries)
	if err != nil {
		return nil, err
	}
	docs = dedupByURL(docs)
	if len(docs) > s.maxResults {
		docs = docs[:s.maxResults]
	}
	return s.enrich(ctx, docs), nil
}

// run isolates per-query failures. It only errors when every query failed or the
// context ended.
func (s *Service) run(ctx context.Context, queries []string) ([]Document, error) {
	var (
		all     []Document
		lastErr error
		failed  int
	)
	for _, query := range queries {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "research: rate limiter")
		}
		zap.L().Info("research: searching", zap.String("query", query))
		docs, err := s.researcher.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "research: search cancelled")
			}
			zap.L().Warn("research: query failed", zap.String("query", query), zap.Error(err))
			lastErr = err
			failed++
			continue
		}
		all = append(all, docs...)
	}
	if len(queries) > 0 && failed == len(queries) {
		return nil, eris.Wrap(lastErr, "research: all queries failed")
	}
	zap.L().Info("research: search complete", zap.Int("queries", len(queries)), zap.Int("results", len(all)))
	return all, nil
}

func (s *Service) enrich(ctx context.Context, docs []Document) []Document {
	if s.enricher == nil {
		return docs
	}
	return s.enricher.Enrich(ctx, docs)
}

func dedupByURL(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.URL]; ok {
			continue
		}
		seen[d.URL] = struct{}{}
		out = append(out, d)
	}
	return out
}
