package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/david/casematch/internal/models"
)

// Guide writes step-by-step guidance for an official handling a case.
type Guide struct {
	oracle Oracle
}

func NewGuide(oracle Oracle) *Guide {
	return &Guide{oracle: oracle}
}

// GenerateGuidance describes how to process c under proc. History is appended after
// the opening request so chat follow-ups keep the case context.
func (g *Guide) GenerateGuidance(ctx context.Context, c models.Case, proc *models.Procedure, history []Message) (string, error) {
	caseJSON, err := json.Marshal(c)
	if err != nil {
		return "", eris.Wrap(err, "ai: marshal case")
	}
	procJSON := []byte("null")
	if proc != nil {
		if procJSON, err = json.Marshal(proc); err != nil {
			return "", eris.Wrap(err, "ai: marshal procedure")
		}
	}

	messages := UserPrompt(fmt.Sprintf(guidancePrompt, caseJSON, procJSON))
	messages = append(messages, history...)

	resp, err := g.oracle.Complete(ctx, MinistrySystemPrompt, messages, Options{})
	if err != nil {
		return "", eris.Wrap(err, "ai: guidance")
	}
	return resp, nil
}
