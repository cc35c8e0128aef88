package scoring

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrInvalidDeadline is returned for deadline text that is absent, unparseable or
// names a date that does not exist.
var ErrInvalidDeadline = errors.New("invalid deadline")

var (
	isoDeadline    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dottedDeadline = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	polishDeadline = regexp.MustCompile(`(?i)(\d{1,2})\s+(stycznia|lutego|marca|kwietnia|maja|czerwca|lipca|sierpnia|września|października|listopada|grudnia)\s+(\d{4})`)
)

// Polish month names in the genitive, as they appear in dates.
var polishMonths = map[string]time.Month{
	"stycznia":     time.January,
	"lutego":       time.February,
	"marca":        time.March,
	"kwietnia":     time.April,
	"maja":         time.May,
	"czerwca":      time.June,
	"lipca":        time.July,
	"sierpnia":     time.August,
	"września":     time.September,
	"października": time.October,
	"listopada":    time.November,
	"grudnia":      time.December,
}

var genericDeadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDeadline resolves deadline text to a calendar date in loc. The three known
// patterns are tried in order and the first match decides; other text goes through
// generic layouts.
func ParseDeadline(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, eris.Wrap(ErrInvalidDeadline, "empty")
	}
	if loc == nil {
		loc = time.UTC
	}

	if m := isoDeadline.FindStringSubmatch(text); m != nil {
		return calendarDate(m[1], m[2], m[3], loc)
	}
	if m := dottedDeadline.FindStringSubmatch(text); m != nil {
		return calendarDate(m[3], m[2], m[1], loc)
	}
	if m := polishDeadline.FindStringSubmatch(text); m != nil {
		month := polishMonths[strings.ToLower(m[2])]
		return calendarDate(m[3], strconv.Itoa(int(month)), m[1], loc)
	}

	cleaned := cleanDeadlineString(text)
	for _, layout := range genericDeadlineLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			t = t.In(loc)
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, eris.Wrapf(ErrInvalidDeadline, "unrecognized %q", text)
}

// IsExpired reports whether the deadline day ended before today. Deadlines that
// cannot be read are logged and treated as open.
func IsExpired(deadline string, now time.Time) bool {
	if strings.TrimSpace(deadline) == "" {
		return false
	}
	d, err := ParseDeadline(deadline, now.Location())
	if err != nil {
		zap.L().Warn("scoring: invalid deadline format", zap.String("deadline", deadline), zap.Error(err))
		return false
	}
	return toEndOfDay(d).Before(toEndOfDay(now))
}

// toEndOfDay sets the time to 23:59:59.999 in t's location.
func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func calendarDate(year, month, day string, loc *time.Location) (time.Time, error) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidDeadline, "non-numeric %s-%s-%s", year, month, day)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, eris.Wrapf(ErrInvalidDeadline, "no such date %04d-%02d-%02d", y, m, d)
	}
	return t, nil
}

// cleanDeadlineString removes common Polish and English labels before a date.
func cleanDeadlineString(s string) string {
	prefixes := []string{
		"termin składania wniosków:", "termin naboru:", "termin:", "do dnia", "deadline:", "closing date:",
	}
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if idx := strings.Index(lower, p); idx != -1 {
			s = s[idx+len(p):]
			lower = lower[idx+len(p):]
		}
	}
	return strings.TrimSpace(s)
}
