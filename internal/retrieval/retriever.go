package retrieval

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
)

// MaxCandidates bounds how many procedures are considered per case.
const MaxCandidates = 3

const (
	baseMatchScore = 0.5
	minBudgetBonus = 0.2
)

// ErrNoCandidate means no procedure exists for the classified category. Callers
// report it as a "no match" outcome.
var ErrNoCandidate = errors.New("no candidate procedure")

// Match is the selected procedure and its eligibility score.
type Match struct {
	Procedure models.Procedure `json:"procedure"`
	Score     float64          `json:"score"`
}

type Retriever struct {
	store db.RecordStore
}

func NewRetriever(store db.RecordStore) *Retriever {
	return &Retriever{store: store}
}

// Retrieve loads up to MaxCandidates procedures in the classification's category,
// in record-store order. Store failures propagate.
func (r *Retriever) Retrieve(ctx context.Context, c models.Classification) ([]models.Procedure, error) {
	category := c.Category
	if category == "" {
		category = models.CategoryOther
	}
	records, err := r.store.QueryByField(ctx, db.TableProcedures, "category", string(category), db.QueryOptions{Limit: MaxCandidates})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: query procedures")
	}
	procs, err := db.DecodeAll[models.Procedure](records)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: decode procedures")
	}
	return procs, nil
}

// MatchScore rates how well a case's extracted details meet a procedure's
// eligibility criteria.
func MatchScore(p models.Procedure, details models.ExtractedDetails) float64 {
	score := baseMatchScore
	if minBudget, ok := p.MinBudget(); ok && details.Amount != nil && *details.Amount >= minBudget {
		score += minBudgetBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// FindBestMatch picks the highest-scoring procedure, ties going to the earliest
// retrieved. It returns false for an empty list.
func FindBestMatch(procs []models.Procedure, details models.ExtractedDetails) (Match, bool) {
	if len(procs) == 0 {
		return Match{}, false
	}
	matches := make([]Match, len(procs))
	for i, p := range procs {
		matches[i] = Match{Procedure: p, Score: MatchScore(p, details)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches[0], true
}
