package models

import (
	"time"

	"github.com/google/uuid"
)

type Analysis struct {
	ID                 uuid.UUID  `json:"id"`
	CaseID             uuid.UUID  `json:"case_id"`
	MatchedProcedureID *uuid.UUID `json:"matched_procedure_id,omitempty"`
	ConfidenceScore    float64    `json:"confidence_score"`
	Reasoning          string     `json:"reasoning"`
	MissingDocuments   []string   `json:"missing_documents"`
	RiskFlags          []string   `json:"risk_flags"`
	CreatedAt          time.Time  `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
