package scoring

import (
	"strings"

	"github.com/david/casematch/internal/models"
)

var categoryKeywords = map[models.Category][]string{
	models.CategoryFunding:  {"dofinansowanie", "dotacja", "grant", "subwencja", "fundusz"},
	models.CategoryPermits:  {"pozwolenie", "zezwolenie", "licencja", "certyfikat"},
	models.CategoryLicenses: {"licencja", "certyfikat", "uprawnienie", "autoryzacja"},
}

// CategoryScore is the fraction of the case category's keyword list present in the
// opportunity name and description.
func CategoryScore(c models.Case, opp models.FundingOpportunity) float64 {
	if c.Category == "" {
		return Neutral
	}
	keywords := categoryKeywords[c.Category]
	if len(keywords) == 0 {
		return Neutral
	}

	oppText := strings.ToLower(opp.Name + " " + opp.Description)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(oppText, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}
