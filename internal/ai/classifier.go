package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/models"
)

// ErrUpstreamClassification marks a classification that could not be produced
// because the oracle failed or replied with something unparseable.
var ErrUpstreamClassification = errors.New("upstream classification failed")

// ClassificationError carries the underlying oracle or decode failure.
type ClassificationError struct {
	Cause error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrUpstreamClassification, e.Cause)
}

func (e *ClassificationError) Unwrap() error { return e.Cause }

func (e *ClassificationError) Is(target error) bool { return target == ErrUpstreamClassification }

type Classifier struct {
	oracle Oracle
}

func NewClassifier(oracle Oracle) *Classifier {
	return &Classifier{oracle: oracle}
}

type classificationReply struct {
	Category         string         `json:"category"`
	Keywords         any            `json:"keywords"`
	ExtractedDetails map[string]any `json:"extractedDetails"`
}

// Classify runs one JSON-mode oracle call and derives confidence locally.
func (c *Classifier) Classify(ctx context.Context, description string) (models.Classification, error) {
	resp, err := c.oracle.Complete(ctx, MinistrySystemPrompt,
		UserPrompt(fmt.Sprintf(classifyPrompt, description)),
		Options{JSONMode: true})
	if err != nil {
		return models.Classification{}, &ClassificationError{Cause: eris.Wrap(err, "ai: classify")}
	}

	var reply classificationReply
	if err := DecodeJSONReply(resp, &reply); err != nil {
		return models.Classification{}, &ClassificationError{Cause: err}
	}

	result := models.Classification{
		Category:         models.ParseCategory(reply.Category),
		Keywords:         normalizeKeywords(reply.Keywords),
		ExtractedDetails: parseDetails(reply.ExtractedDetails),
	}
	result.Confidence = Confidence(result)

	zap.L().Debug("ai: classified case",
		zap.String("category", string(result.Category)),
		zap.Int("keywords", len(result.Keywords)),
		zap.Float64("confidence", result.Confidence),
	)
	return result, nil
}

// Confidence scores how complete a classification is.
func Confidence(c models.Classification) float64 {
	confidence := 0.5
	if c.Category != "" {
		confidence += 0.2
	}
	if len(c.Keywords) > 0 {
		confidence += 0.15
	}
	if !c.ExtractedDetails.IsEmpty() {
		confidence += 0.15
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func normalizeKeywords(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.Split(v, ",")
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		kw := strings.ToLower(strings.TrimSpace(item))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
		if len(out) == models.MaxKeywords {
			break
		}
	}
	return out
}

func parseDetails(raw map[string]any) models.ExtractedDetails {
	var d models.ExtractedDetails
	if raw == nil {
		return d
	}
	d.Amount = parseAmountValue(raw["amount"])
	d.Location = stringField(raw, "location")
	d.FacilityType = stringField(raw, "facilityType", "facility_type")
	d.Urgency = stringField(raw, "urgency")
	return d
}

func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}

var amountDigits = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

func parseAmountValue(v any) *float64 {
	switch a := v.(type) {
	case float64:
		return &a
	case string:
		compact := strings.NewReplacer(" ", "", "\u00a0", "").Replace(a)
		m := amountDigits.FindString(compact)
		if m == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
