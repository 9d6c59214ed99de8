package temporal

import (
	"regexp"
	"strings"
	"time"
)

// Interval is the half-open span [Start, End) a question refers to.
type Interval struct {
	Expression string
	Start      time.Time
	End        time.Time
}

var (
	currentPeriodPattern  = regexp.MustCompile(`\b(?:cette|ce)\s+(semaine|mois|ann[ée]e)(?:-ci)?\b`)
	relativePeriodPattern = regexp.MustCompile(`\b(?:(?:la|le|l')\s*)?(semaine|mois|ann[ée]e)\s+(derni[eè]re?|pass[ée]e?|prochaine?)`)
	betweenPattern        = regexp.MustCompile(`\bentre\s+(.+?)\s+et\s+(.+)$`)
)

// Resolve finds the span of time text refers to: "entre lundi et mercredi",
// a calendar period such as "la semaine dernière" or "ce mois-ci", or else
// the whole day of the first expression Detect finds. Weeks start on Monday.
func Resolve(text string, now time.Time) (*Interval, bool) {
	lower := normalize(text)

	if iv, ok := resolveBetween(lower, now); ok {
		return iv, true
	}
	if iv, ok := resolvePeriod(lower, now); ok {
		return iv, true
	}
	if m, ok := Detect(text, now); ok {
		start, end := m.Range()
		return &Interval{Expression: m.Expression, Start: start, End: end}, true
	}
	return nil, false
}

// resolveBetween handles "entre X et Y". The start follows the sentence's
// direction; an end that would fall before the start is taken as the next
// such day after it, so "entre lundi et mercredi" spans three days.
func resolveBetween(lower string, now time.Time) (*Interval, bool) {
	m := betweenPattern.FindStringSubmatch(lower)
	if m == nil {
		return nil, false
	}
	dir := DetectDirection(lower)

	start, startExpr, _, ok := detectDay(m[1], now, dir)
	if !ok {
		return nil, false
	}
	start = startOfDay(start)

	end, endExpr, _, ok := detectDay(m[2], now, dir)
	if !ok {
		return nil, false
	}
	if end = startOfDay(end); end.Before(start) {
		if end, _, _, ok = detectDay(m[2], start, Future); !ok {
			return nil, false
		}
		end = startOfDay(end)
	}

	return &Interval{
		Expression: "entre " + startExpr + " et " + endExpr,
		Start:      start,
		End:        end.AddDate(0, 0, 1),
	}, true
}

func resolvePeriod(lower string, now time.Time) (*Interval, bool) {
	var unit, expr string
	offset := 0

	if m := relativePeriodPattern.FindStringSubmatch(lower); m != nil {
		unit, expr = m[1], strings.TrimSpace(m[0])
		if strings.HasPrefix(m[2], "prochain") {
			offset = 1
		} else {
			offset = -1
		}
	} else if m := currentPeriodPattern.FindStringSubmatch(lower); m != nil {
		unit, expr = m[1], strings.TrimSpace(m[0])
	} else {
		return nil, false
	}

	today := startOfDay(now)
	var start, end time.Time
	switch unit {
	case "semaine":
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		start = monday.AddDate(0, 0, 7*offset)
		end = start.AddDate(0, 0, 7)
	case "mois":
		start = time.Date(today.Year(), today.Month()+time.Month(offset), 1, 0, 0, 0, 0, today.Location())
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(today.Year()+offset, time.January, 1, 0, 0, 0, 0, today.Location())
		end = start.AddDate(1, 0, 0)
	}
	return &Interval{Expression: expr, Start: start, End: end}, true
}
