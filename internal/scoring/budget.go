package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/david/casematch/internal/models"
)

// Thousands groups may be separated by a space, NBSP or narrow NBSP. The trailing
// (?:\D|$) keeps a digit run from being split into a shorter thousands group, so
// "1000000" is not read as "100000".
const (
	groupSep = `[\s\x{00A0}\x{202F}]`
	grouped  = `(\d{1,3}(?:` + groupSep + `?\d{3})*)`
)

var (
	caseAmountPattern   = regexp.MustCompile(`(?i)` + grouped + groupSep + `*(?:pln|zł|zloty|zlotych)`)
	amountRangePattern  = regexp.MustCompile(grouped + groupSep + `*-` + groupSep + `*` + grouped + `(?:\D|$)`)
	singleAmountPattern = regexp.MustCompile(grouped + `(?:\D|$)`)
)

// ExtractCaseAmount finds the first currency-suffixed amount in a case description.
func ExtractCaseAmount(description string) (float64, bool) {
	m := caseAmountPattern.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	return parseGroupedNumber(m[1])
}

// AmountRange is what an opportunity's amount text resolves to. Single means Min
// and Max carry the same lone figure.
type AmountRange struct {
	Min, Max float64
	Single   bool
}

// ParseAmountRange reads "A - B" or a single amount.
func ParseAmountRange(text string) (AmountRange, bool) {
	if m := amountRangePattern.FindStringSubmatch(text); m != nil {
		lo, okLo := parseGroupedNumber(m[1])
		hi, okHi := parseGroupedNumber(m[2])
		if okLo && okHi {
			return AmountRange{Min: lo, Max: hi}, true
		}
	}
	if m := singleAmountPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseGroupedNumber(m[1]); ok {
			return AmountRange{Min: v, Max: v, Single: true}, true
		}
	}
	return AmountRange{}, false
}

// BudgetScore compares the case's requested amount with the opportunity's range.
func BudgetScore(c models.Case, opp models.FundingOpportunity) float64 {
	if strings.TrimSpace(opp.AmountRange) == "" {
		return Neutral
	}
	amount, ok := ExtractCaseAmount(c.Description)
	if !ok {
		return Neutral
	}
	r, ok := ParseAmountRange(opp.AmountRange)
	if !ok {
		return Neutral
	}

	if r.Single {
		if amount <= 0 || r.Max <= 0 {
			return Neutral
		}
		if amount < r.Max {
			return amount / r.Max
		}
		return r.Max / amount
	}

	switch {
	case amount >= r.Min && amount <= r.Max:
		return BudgetInRange
	case amount < r.Min:
		return BudgetBelowRange
	default:
		return BudgetAboveRange
	}
}

func parseGroupedNumber(s string) (float64, bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
