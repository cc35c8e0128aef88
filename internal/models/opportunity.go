package models

import (
	"time"

	"github.com/google/uuid"
)

// FundingOpportunity is a funding program discovered by research and scored against
// a case before it is persisted.
type FundingOpportunity struct {
	ID                  uuid.UUID  `json:"id,omitempty"`
	CaseID              *uuid.UUID `json:"case_id,omitempty"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	AmountRange         string     `json:"amount_range,omitempty"`
	EligibilityCriteria string     `json:"eligibility_criteria,omitempty"`
	Category            string     `json:"category,omitempty"`
	Deadline            string     `json:"deadline,omitempty"`
	ContactInfo         string     `json:"contact_info,omitempty"`
	SourceURL           string     `json:"source_url"`
	SourceTitle         string     `json:"source_title,omitempty"`
	RelevanceScore      float64    `json:"relevance_score"`
	Justification       string     `json:"justification,omitempty"`
	IsExpired           bool       `json:"is_expired"`
	Embedding           []float32  `json:"-"`
	CreatedAt           time.Time  `json:"created_at,omitempty"`
}

// ScoreComponents exposes the four sub-scores behind a relevance score.
type ScoreComponents struct {
	Semantic float64 `json:"semantic"`
	Keyword  float64 `json:"keyword"`
	Category float64 `json:"category"`
	Budget   float64 `json:"budget"`
}

type ScoringResult struct {
	Score         float64         `json:"score"`
	Justification string          `json:"justification"`
	IsExpired     bool            `json:"isExpired"`
	Components    ScoreComponents `json:"components"`
}
