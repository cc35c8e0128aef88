package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/david/casematch/internal/models"
)

const minKeywordRunes = 3

var stopWords = map[string]struct{}{
	"i": {}, "oraz": {}, "lub": {}, "ale": {}, "że": {}, "na": {}, "w": {}, "z": {},
	"do": {}, "od": {}, "po": {}, "przed": {}, "pod": {}, "nad": {}, "dla": {},
	"przez": {}, "o": {}, "a": {}, "się": {}, "jest": {}, "są": {}, "być": {},
	"to": {}, "ten": {}, "ta": {}, "te": {}, "jego": {}, "jej": {}, "ich": {},
	"nasz": {}, "wasz": {}, "swój": {}, "który": {}, "która": {}, "które": {},
	"co": {}, "jak": {}, "gdzie": {}, "kiedy": {}, "dlaczego": {}, "czy": {},
}

// ExtractKeywords returns up to 15 unique lowercase tokens of at least three letters,
// in first-seen order, with punctuation and Polish stop-words removed.
func ExtractKeywords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	keywords := make([]string, 0, models.MaxKeywords)
	seen := make(map[string]bool)
	for _, word := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(word) < minKeywordRunes || seen[word] {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == models.MaxKeywords {
			break
		}
	}
	return keywords
}

// KeywordScore is the fraction of the case's keywords found in the opportunity text.
// A case without keywords scores Neutral.
func KeywordScore(c models.Case, opp models.FundingOpportunity) float64 {
	keywords := ExtractKeywords(c.Title + " " + c.Description)
	if len(keywords) == 0 {
		return Neutral
	}

	oppText := strings.ToLower(opp.Name + " " + opp.Description + " " + opp.EligibilityCriteria)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(oppText, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}
