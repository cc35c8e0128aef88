package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/ai/aitest"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
	"github.com/david/casematch/internal/research"
	"github.com/david/casematch/internal/retrieval"
	"github.com/david/casematch/internal/scoring"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const hallClassification = `{"category":"funding","keywords":["hala","sport","budowa"],"extractedDetails":{"amount":300000,"location":"Kraków","facilityType":"hala sportowa"}}`

const guidanceReply = "1. Złóż wniosek. 2. Dołącz kosztorys."

// scripted routes each oracle call by the prompt it carries. ratings maps a
// lowercase opportunity name to the semantic reply; extractions maps a source URL
// to the extraction reply.
type scripted struct {
	classification string
	ratings        map[string]string
	extractions    map[string]string
}

func (s scripted) oracle() *aitest.Oracle {
	return &aitest.Oracle{Respond: func(call aitest.Call) (string, error) {
		prompt := call.Prompt()
		switch {
		case strings.Contains(prompt, "Sklasyfikuj"):
			if s.classification == "" {
				return "", aitest.ErrOracleDown
			}
			return s.classification, nil
		case strings.Contains(call.System, "Oceniasz dopasowanie"):
			for name, reply := range s.ratings {
				if strings.Contains(prompt, name) {
					if reply == "" {
						return "", aitest.ErrOracleDown
					}
					return reply, nil
				}
			}
			return "0.5", nil
		case strings.Contains(call.System, "uzasadnienie"):
			return "Program dobrze odpowiada wnioskowi.", nil
		case strings.HasPrefix(call.System, "Wyodrębnij"):
			for url, reply := range s.extractions {
				if strings.Contains(prompt, url) {
					return reply, nil
				}
			}
			return "{}", nil
		}
		return guidanceReply, nil
	}}
}

func newPipeline(t *testing.T, store db.RecordStore, oracle ai.Oracle, svc *research.Service) *Pipeline {
	t.Helper()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return New(Deps{
		Store:      store,
		Classifier: ai.NewClassifier(oracle),
		Retriever:  retrieval.NewRetriever(store),
		Scorer:     scoring.NewScorer(oracle, scoring.WithClock(func() time.Time { return now })),
		Extractor:  ai.NewExtractor(oracle),
		Guide:      ai.NewGuide(oracle),
		Research:   svc,
	}, Config{Concurrency: 3})
}

func insert(t *testing.T, store db.RecordStore, table string, v any) string {
	t.Helper()
	rec, err := db.ToRecord(v)
	require.NoError(t, err)
	saved, err := store.Insert(context.Background(), table, rec)
	require.NoError(t, err)
	return saved["id"].(string)
}

func hallCase() models.Case {
	return models.Case{
		Title:       "Budowa hali sportowej",
		Description: "Wniosek o dofinansowanie 300000 zł na budowę hali sportowej w Krakowie",
		Status:      models.CaseStatusPending,
	}
}

func seedCatalog(t *testing.T, store db.RecordStore) string {
	t.Helper()
	insert(t, store, db.TableProcedures, models.Procedure{
		Name:     "Pozwolenie na budowę",
		Category: models.CategoryPermits,
	})
	insert(t, store, db.TableProcedures, models.Procedure{
		Name:     "Program ogólny",
		Category: models.CategoryFunding,
	})
	return insert(t, store, db.TableProcedures, models.Procedure{
		Name:                "Program rozwoju infrastruktury sportowej",
		Category:            models.CategoryFunding,
		RequiredDocuments:   []string{"wniosek", "kosztorys"},
		EligibilityCriteria: map[string]any{"min_budget": 100000},
	})
}

func TestMatchEndToEnd(t *testing.T) {
	store := db.NewMemoryStore()
	procID := seedCatalog(t, store)

	oracle := scripted{
		classification: hallClassification,
		ratings:        map[string]string{"alfa": "0.1", "beta": "0.9"},
	}.oracle()
	p := newPipeline(t, store, oracle, nil)

	candidates := []models.FundingOpportunity{
		{Name: "Alfa", Description: "Dotacje na obiekty sportowe", AmountRange: "100000-1000000"},
		{Name: "Beta", Description: "Dotacje na obiekty sportowe", AmountRange: "100000-1000000"},
	}
	res, err := p.Match(context.Background(), hallCase(), candidates)
	require.NoError(t, err)

	assert.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, models.CategoryFunding, res.Classification.Category)
	require.NotNil(t, res.Match)
	assert.Equal(t, procID, res.Match.Procedure.ID.String())
	assert.GreaterOrEqual(t, res.Match.Score, 0.7)
	assert.Equal(t, guidanceReply, res.Guidance)

	require.Len(t, res.Ranked, 2)
	assert.Equal(t, "Beta", res.Ranked[0].Name)
	assert.Equal(t, "Alfa", res.Ranked[1].Name)
	assert.Greater(t, res.Ranked[0].RelevanceScore, res.Ranked[1].RelevanceScore)
	assert.Equal(t, 1.0, res.Ranked[0].Components.Budget)
	for _, r := range res.Ranked {
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.LessOrEqual(t, r.RelevanceScore, 1.0)
		assert.NotEmpty(t, r.Justification)
	}
}

func TestMatchNoProcedureShortCircuits(t *testing.T) {
	store := db.NewMemoryStore()
	insert(t, store, db.TableProcedures, models.Procedure{Name: "Licencja", Category: models.CategoryLicenses})

	oracle := scripted{classification: hallClassification}.oracle()
	p := newPipeline(t, store, oracle, nil)

	res, err := p.Match(context.Background(), hallCase(), []models.FundingOpportunity{{Name: "Alfa"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Nil(t, res.Match)
	assert.Empty(t, res.Ranked)
	assert.Len(t, oracle.Calls(), 1, "only the classification call is made")
}

func TestMatchClassificationFailureIsFatal(t *testing.T) {
	store := db.NewMemoryStore()
	seedCatalog(t, store)

	p := newPipeline(t, store, aitest.Failing(), nil)
	_, err := p.Match(context.Background(), hallCase(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrUpstreamClassification))

	var classErr *ai.ClassificationError
	assert.True(t, errors.As(err, &classErr))
}

func TestMatchScoresWithFreshCategory(t *testing.T) {
	store := db.NewMemoryStore()
	seedCatalog(t, store)
	p := newPipeline(t, store, scripted{classification: hallClassification}.oracle(), nil)

	stale := hallCase()
	stale.Category = models.CategoryPermits
	res, err := p.Match(context.Background(), stale, []models.FundingOpportunity{
		{Name: "Program", Description: "Dotacja z funduszu rozwoju"},
	})
	require.NoError(t, err)
	require.Len(t, res.Ranked, 1)
	assert.InDelta(t, 0.4, res.Ranked[0].Components.Category, 1e-9)
}

func TestAnalyzePersistsResult(t *testing.T) {
	store := db.NewMemoryStore()
	procID := seedCatalog(t, store)
	caseID := insert(t, store, db.TableCases, hallCase())

	p := newPipeline(t, store, scripted{classification: hallClassification}.oracle(), nil)
	res, err := p.Analyze(context.Background(), caseID)
	require.NoError(t, err)
	require.Equal(t, OutcomeMatched, res.Outcome)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, guidanceReply, res.Analysis.Reasoning)
	assert.InDelta(t, 0.7, res.Analysis.ConfidenceScore, 1e-9)
	assert.Equal(t, procID, res.Analysis.MatchedProcedureID.String())

	rec, err := store.Get(context.Background(), db.TableCases, caseID)
	require.NoError(t, err)
	stored, err := db.Decode[models.Case](rec)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusInReview, stored.Status)
	assert.Equal(t, models.CategoryFunding, stored.Category)
	require.NotNil(t, stored.AssignedProcedureID)
	assert.Equal(t, procID, stored.AssignedProcedureID.String())

	analyses, err := store.QueryByField(context.Background(), db.TableAnalyses, "case_id", caseID, db.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, analyses, 1)
}

func TestAnalyzeNoMatchLeavesCaseUntouched(t *testing.T) {
	store := db.NewMemoryStore()
	caseID := insert(t, store, db.TableCases, hallCase())

	p := newPipeline(t, store, scripted{classification: hallClassification}.oracle(), nil)
	res, err := p.Analyze(context.Background(), caseID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Nil(t, res.Analysis)

	rec, err := store.Get(context.Background(), db.TableCases, caseID)
	require.NoError(t, err)
	assert.Equal(t, "pending", rec["status"])
}

func TestAnalyzeUnknownCase(t *testing.T) {
	p := newPipeline(t, db.NewMemoryStore(), scripted{classification: hallClassification}.oracle(), nil)
	_, err := p.Analyze(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestRankKeepsDiscoveryOrderForTies(t *testing.T) {
	oracle := scripted{ratings: map[string]string{"gamma": ""}}.oracle()
	p := newPipeline(t, db.NewMemoryStore(), oracle, nil)

	var opps []models.FundingOpportunity
	for _, name := range []string{"Alfa", "Beta", "Gamma", "Delta", "Epsilon"} {
		opps = append(opps, models.FundingOpportunity{Name: name, Description: "Program wsparcia"})
	}
	ranked := p.Rank(context.Background(), hallCase(), opps)
	require.Len(t, ranked, 5)

	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Name
		assert.InDelta(t, ranked[0].RelevanceScore, r.RelevanceScore, 1e-9)
	}
	assert.Equal(t, []string{"Alfa", "Beta", "Gamma", "Delta", "Epsilon"}, names)
	assert.Equal(t, scoring.Neutral, ranked[2].Components.Semantic)
}

func TestRankFlagsExpiryWithoutChangingScore(t *testing.T) {
	p := newPipeline(t, db.NewMemoryStore(), scripted{}.oracle(), nil)
	ranked := p.Rank(context.Background(), hallCase(), []models.FundingOpportunity{
		{Name: "Stary", Description: "Program", Deadline: "2024-01-01"},
		{Name: "Nowy", Description: "Program", Deadline: "31.12.2099"},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "Stary", ranked[0].Name)
	assert.True(t, ranked[0].IsExpired)
	assert.False(t, ranked[1].IsExpired)
	assert.InDelta(t, ranked[0].RelevanceScore, ranked[1].RelevanceScore, 1e-9)
}

func TestChatCarriesHistory(t *testing.T) {
	store := db.NewMemoryStore()
	procID := seedCatalog(t, store)
	c := hallCase()
	pid := uuid.MustParse(procID)
	c.AssignedProcedureID = &pid
	caseID := insert(t, store, db.TableCases, c)

	oracle := scripted{}.oracle()
	p := newPipeline(t, store, oracle, nil)

	_, err := p.Chat(context.Background(), caseID, "Jakie dokumenty?")
	require.NoError(t, err)
	reply, err := p.Chat(context.Background(), caseID, "A terminy?")
	require.NoError(t, err)
	assert.Equal(t, guidanceReply, reply)

	calls := oracle.Calls()
	last := calls[len(calls)-1]
	require.Len(t, last.Messages, 4)
	assert.Equal(t, "Jakie dokumenty?", last.Messages[1].Content)
	assert.Equal(t, models.RoleAssistant, last.Messages[2].Role)
	assert.Equal(t, "A terminy?", last.Messages[3].Content)
	assert.Contains(t, last.Messages[0].Content, "Program rozwoju infrastruktury sportowej")

	history, err := p.History(context.Background(), caseID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[3].Role)

	_, err = p.Chat(context.Background(), caseID, "   ")
	assert.True(t, errors.Is(err, ErrEmptyMessage))
}

type fakeResearcher map[string][]research.Document

func (f fakeResearcher) Search(_ context.Context, query string) ([]research.Document, error) {
	return f[query], nil
}

func TestResearchFunding(t *testing.T) {
	store := db.NewMemoryStore()
	caseID := insert(t, store, db.TableCases, hallCase())

	reg := &research.Registry{Funding: []string{"dotacje {{.Title}}"}}
	svc := research.NewService(fakeResearcher{
		"dotacje Budowa hali sportowej": {
			{URL: "https://msit.gov.pl/alfa", Title: "Alfa", Text: "Program Alfa"},
			{URL: "https://msit.gov.pl/beta", Title: "Beta <b>2025</b>", Text: "Dotacje na hale sportowe"},
			{URL: "https://msit.gov.pl/news", Title: "Aktualności", Text: "Nic"},
		},
	}, reg, nil, research.Config{RateLimitRPS: 1000})

	oracle := scripted{
		ratings: map[string]string{"alfa": "0.2", "beta": "0.8"},
		extractions: map[string]string{
			"https://msit.gov.pl/alfa": `{"name":"Alfa","description":"Dotacje <i>sportowe</i>","amount_range":"100000-1000000","deadline":"2099-12-31"}`,
			"https://msit.gov.pl/beta": "brak danych",
			"https://msit.gov.pl/news": `{"name":null}`,
		},
	}.oracle()
	p := newPipeline(t, store, oracle, svc)

	ranked, err := p.ResearchFunding(context.Background(), caseID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "Beta 2025", ranked[0].Name)
	assert.Equal(t, "Dotacje na hale sportowe", ranked[0].Description)
	assert.Equal(t, "Alfa", ranked[1].Name)
	assert.Equal(t, "Dotacje sportowe", ranked[1].Description)
	assert.False(t, ranked[1].IsExpired)
	for _, r := range ranked {
		assert.NotEqual(t, uuid.Nil, r.ID)
		require.NotNil(t, r.CaseID)
		assert.Equal(t, caseID, r.CaseID.String())
	}

	stored, err := store.QueryByField(context.Background(), db.TableFundingOpportunities, "case_id", caseID, db.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestResearchProcedures(t *testing.T) {
	store := db.NewMemoryStore()
	reg := &research.Registry{Procedures: []string{"procedury"}}
	svc := research.NewService(fakeResearcher{
		"procedury": {
			{URL: "https://msit.gov.pl/p1", Text: "Procedura 1"},
			{URL: "https://msit.gov.pl/p2", Text: "Śmieci"},
		},
	}, reg, nil, research.Config{RateLimitRPS: 1000})

	oracle := scripted{extractions: map[string]string{
		"https://msit.gov.pl/p1": `{"name":"Dofinansowanie klubu","category":"funding","required_documents":["statut"],"steps":["Złóż wniosek"],"avg_processing_days":30}`,
	}}.oracle()
	p := newPipeline(t, store, oracle, svc)

	procs, err := p.ResearchProcedures(context.Background())
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, "Dofinansowanie klubu", procs[0].Name)
	require.NotNil(t, procs[0].LegalBasis)
	assert.Equal(t, "https://msit.gov.pl/p1", *procs[0].LegalBasis)
	assert.Equal(t, 30, procs[0].AvgProcessingDays)

	recs, err := store.QueryByField(context.Background(), db.TableProcedures, "category", "funding", db.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestResearchWithoutBackend(t *testing.T) {
	p := newPipeline(t, db.NewMemoryStore(), scripted{}.oracle(), nil)
	_, err := p.ResearchProcedures(context.Background())
	assert.True(t, errors.Is(err, ErrResearchUnavailable))
	_, err = p.ResearchFunding(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, ErrResearchUnavailable))
}
