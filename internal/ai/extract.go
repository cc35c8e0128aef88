package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/models"
)

const (
	opportunityTextLimit = 4000
	procedureTextLimit   = 3000
)

// ErrNothingExtracted means the oracle replied but named no program or procedure.
var ErrNothingExtracted = errors.New("nothing extracted")

// Extractor turns research documents into structured records.
type Extractor struct {
	oracle Oracle
}

func NewExtractor(oracle Oracle) *Extractor {
	return &Extractor{oracle: oracle}
}

type opportunityReply struct {
	Name                any `json:"name"`
	Description         any `json:"description"`
	AmountRange         any `json:"amount_range"`
	EligibilityCriteria any `json:"eligibility_criteria"`
	Deadline            any `json:"deadline"`
	ContactInfo         any `json:"contact_info"`
	URL                 any `json:"url"`
	Category            any `json:"category"`
}

// ExtractOpportunity reads a funding program out of a page.
func (e *Extractor) ExtractOpportunity(ctx context.Context, url, title, text string) (models.FundingOpportunity, error) {
	var reply opportunityReply
	prompt := fmt.Sprintf(sourcePrompt, url, Truncate(text, opportunityTextLimit))
	if err := e.complete(ctx, opportunityExtractionPrompt, prompt, &reply); err != nil {
		return models.FundingOpportunity{}, err
	}

	opp := models.FundingOpportunity{
		Name:                flattenText(reply.Name),
		Description:         flattenText(reply.Description),
		AmountRange:         flattenText(reply.AmountRange),
		EligibilityCriteria: flattenText(reply.EligibilityCriteria),
		Deadline:            flattenText(reply.Deadline),
		ContactInfo:         flattenText(reply.ContactInfo),
		Category:            flattenText(reply.Category),
		SourceURL:           url,
		SourceTitle:         title,
	}
	if opp.Name == "" {
		return opp, eris.Wrapf(ErrNothingExtracted, "ai: opportunity from %s", url)
	}
	return opp, nil
}

type procedureReply struct {
	Name                any `json:"name"`
	Category            any `json:"category"`
	Description         any `json:"description"`
	RequiredDocuments   any `json:"required_documents"`
	EligibilityCriteria any `json:"eligibility_criteria"`
	Steps               any `json:"steps"`
	AvgProcessingDays   any `json:"avg_processing_days"`
}

// ExtractProcedure reads an administrative procedure out of a page. The source URL
// is kept as its legal basis.
func (e *Extractor) ExtractProcedure(ctx context.Context, url, text string) (models.Procedure, error) {
	var reply procedureReply
	prompt := fmt.Sprintf(sourcePrompt, url, Truncate(text, procedureTextLimit))
	if err := e.complete(ctx, procedureExtractionPrompt, prompt, &reply); err != nil {
		return models.Procedure{}, err
	}

	proc := models.Procedure{
		Name:                flattenText(reply.Name),
		Category:            models.ParseCategory(flattenText(reply.Category)),
		Description:         flattenText(reply.Description),
		RequiredDocuments:   stringList(reply.RequiredDocuments),
		EligibilityCriteria: criteriaMap(reply.EligibilityCriteria),
		Steps:               parseSteps(reply.Steps),
	}
	if days := parseAmountValue(reply.AvgProcessingDays); days != nil {
		proc.AvgProcessingDays = int(*days)
	}
	if url != "" {
		proc.LegalBasis = &url
	}
	if proc.Category == "" {
		proc.Category = models.CategoryOther
	}
	if proc.Name == "" {
		return proc, eris.Wrapf(ErrNothingExtracted, "ai: procedure from %s", url)
	}
	return proc, nil
}

// complete tries JSON mode first and falls back to free text with lenient parsing.
func (e *Extractor) complete(ctx context.Context, system, prompt string, out any) error {
	resp, err := e.oracle.Complete(ctx, system, UserPrompt(prompt), Options{JSONMode: true})
	if err == nil {
		parseErr := DecodeJSONReply(resp, out)
		if parseErr == nil {
			return nil
		}
		zap.L().Debug("ai: json mode reply unparseable, retrying in text mode", zap.Error(parseErr))
	} else if ctx.Err() != nil {
		return eris.Wrap(err, "ai: extract")
	} else {
		zap.L().Debug("ai: json mode generation failed, retrying in text mode", zap.Error(err))
	}

	resp, err = e.oracle.Complete(ctx, system, UserPrompt(prompt), Options{})
	if err != nil {
		return eris.Wrap(err, "ai: extract")
	}
	if err := DecodeJSONReply(resp, out); err != nil {
		return eris.Wrap(err, "ai: extract after retry")
	}
	return nil
}

func flattenText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		return strings.Join(stringList(t), ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s := flattenText(v); s != "" {
			return []string{s}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := flattenText(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// criteriaMap keeps an object as is; free text is kept under "description".
func criteriaMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return map[string]any{"description": s}
		}
	}
	return map[string]any{}
}

// parseSteps accepts a list of strings or step objects, or one string with a
// step per line.
func parseSteps(v any) []models.ProcedureStep {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case string:
		for _, line := range strings.Split(t, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				raw = append(raw, line)
			}
		}
	}
	steps := make([]models.ProcedureStep, 0, len(raw))
	for i, item := range raw {
		step := models.ProcedureStep{Step: i + 1}
		switch v := item.(type) {
		case string:
			step.Action = strings.TrimSpace(v)
		case map[string]any:
			if n := parseAmountValue(v["step"]); n != nil {
				step.Step = int(*n)
			}
			step.Action = flattenText(v["action"])
			if d := parseAmountValue(v["days"]); d != nil {
				days := int(*d)
				step.Days = &days
			}
		}
		if step.Action != "" {
			steps = append(steps, step)
		}
	}
	return steps
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
