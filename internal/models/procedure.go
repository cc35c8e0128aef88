package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ProcedureStep struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Days   *int   `json:"days,omitempty"`
}

type Procedure struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	Category            Category        `json:"category"`
	Description         string          `json:"description"`
	RequiredDocuments   []string        `json:"required_documents"`
	EligibilityCriteria map[string]any  `json:"eligibility_criteria"`
	Steps               []ProcedureStep `json:"steps"`
	AvgProcessingDays   int             `json:"avg_processing_days"`
	LegalBasis          *string         `json:"legal_basis,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// MinBudget reads the min_budget eligibility criterion. Numeric strings are accepted
// because extracted catalogs often carry "100 000".
func (p Procedure) MinBudget() (float64, bool) {
	raw, ok := p.EligibilityCriteria["min_budget"]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\u00a0' || r == '_' {
				return -1
			}
			return r
		}, v)
		clean = strings.ReplaceAll(clean, ",", ".")
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
