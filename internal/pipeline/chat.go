package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
)

// ErrEmptyMessage is returned by Chat for a blank message.
var ErrEmptyMessage = errors.New("message is empty")

// Chat answers a follow-up question about a case with the full conversation as
// context and stores both turns.
func (p *Pipeline) Chat(ctx context.Context, caseID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	c, err := p.loadCase(ctx, caseID)
	if err != nil {
		return "", err
	}

	var proc *models.Procedure
	if c.AssignedProcedureID != nil {
		rec, err := p.store.Get(ctx, db.TableProcedures, c.AssignedProcedureID.String())
		switch {
		case err == nil:
			decoded, err := db.Decode[models.Procedure](rec)
			if err != nil {
				return "", err
			}
			proc = &decoded
		case !errors.Is(err, db.ErrNotFound):
			return "", eris.Wrap(err, "pipeline: load procedure")
		}
	}

	history, err := p.History(ctx, caseID)
	if err != nil {
		return "", err
	}
	turns := make([]ai.Message, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, ai.Message{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, ai.Message{Role: models.RoleUser, Content: message})

	reply, err := p.guide.GenerateGuidance(ctx, c, proc, turns)
	if err != nil {
		return "", err
	}

	for _, m := range []models.ChatMessage{
		{CaseID: c.ID, Role: models.RoleUser, Content: message},
		{CaseID: c.ID, Role: models.RoleAssistant, Content: reply},
	} {
		rec, err := db.ToRecord(m)
		if err != nil {
			return "", err
		}
		if _, err := p.store.Insert(ctx, db.TableChatMessages, rec); err != nil {
			return "", eris.Wrap(err, "pipeline: store chat message")
		}
	}
	return reply, nil
}

// History returns a case's chat messages, oldest first.
func (p *Pipeline) History(ctx context.Context, caseID string) ([]models.ChatMessage, error) {
	recs, err := p.store.QueryByField(ctx, db.TableChatMessages, "case_id", caseID,
		db.QueryOptions{OrderBy: "created_at"})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load chat history")
	}
	return db.DecodeAll[models.ChatMessage](recs)
}
