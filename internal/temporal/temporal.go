// Package temporal detects French date expressions such as "demain",
// "lundi prochain" or "dans 3 jours à 14h", periods such as "la semaine
// dernière", and recurrences such as "tous les mardis".
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Match is a resolved temporal expression.
type Match struct {
	// Expression is the matched text, e.g. "demain à 14h".
	Expression string

	// Date is the resolved instant in the reference location. When HasTime
	// is false it is midnight of the resolved day.
	Date    time.Time
	HasTime bool
}

// Range returns the whole-day interval [start, end) containing Date.
func (m Match) Range() (time.Time, time.Time) {
	start := startOfDay(m.Date)
	return start, start.AddDate(0, 0, 1)
}

var weekdays = map[string]time.Weekday{
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
	"dimanche": time.Sunday,
}

var months = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
	"decembre":  time.December,
}

// Alternation order matters: at a given position the first alternative wins,
// so compound forms precede the words they contain.
var (
	dayPattern = regexp.MustCompile(`\b(?:` +
		`(?P<aftertomorrow>apr[eè]s[- ]demain)` +
		`|(?P<beforeyesterday>avant[- ]hier)` +
		`|(?P<today>aujourd'hui)` +
		`|(?P<tomorrow>demain)` +
		`|(?P<yesterday>hier)` +
		`|(?P<evening>ce\s+soir)` +
		`|(?P<morning>ce\s+matin)` +
		`|(?P<afternoon>cet\s+apr[eè]s[- ]midi)` +
		`|(?P<weekday>lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)(?:\s+(?P<qualifier>prochain|dernier))?` +
		`|(?P<relative>(?:dans|il\s+y\s+a)\s+(?:\d{1,3}|une?)\s+(?:jours?|semaines?|mois))` +
		`|(?P<calendar>(?P<day>\d{1,2})(?:er)?\s+(?P<month>janvier|f[eé]vrier|mars|avril|mai|juin|juillet|ao[uû]t|septembre|octobre|novembre|d[eé]cembre)(?:\s+(?P<year>\d{4}))?)` +
		`|(?P<numeric>(?P<nday>\d{1,2})[/.](?P<nmonth>\d{1,2})[/.]\d{4})` +
		`)\b`)

	timePattern = regexp.MustCompile(`(?:(?:^|\s)à\s+)?\b(\d{1,2})\s*h\s*(\d{2})?\b`)
)

// Default hours for parts of the day.
const (
	morningHour   = 8
	afternoonHour = 15
	eveningHour   = 20
)

// Detect finds the first French temporal expression in text, resolved
// relative to now. A bare weekday resolves forward, or backward when the
// sentence speaks about the past. A time of day alone resolves to today,
// or tomorrow when that time has already passed. Calendar dates and
// "dans N jours" style offsets are resolved by go-dateparser; an impossible
// calendar date yields no match.
func Detect(text string, now time.Time) (*Match, bool) {
	lower := normalize(text)

	day, dayExpr, dayTime, hasDay := detectDay(lower, now, DetectDirection(lower))
	hour, minute, timeExpr, hasTime := detectTime(lower)

	switch {
	case hasDay && hasTime:
		d := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
		return &Match{Expression: dayExpr + " " + timeExpr, Date: d, HasTime: true}, true

	case hasDay:
		return &Match{Expression: dayExpr, Date: day, HasTime: dayTime}, true

	case hasTime && dayExpr == "":
		d := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if d.Before(now) {
			d = d.AddDate(0, 0, 1)
		}
		return &Match{Expression: timeExpr, Date: d, HasTime: true}, true
	}
	return nil, false
}

// detectDay resolves the first day expression in lower. A bare weekday looks
// backward when dir is Past. The returned expression is set even when the
// expression could not be resolved, so callers can tell a rejected date from
// no date at all.
func detectDay(lower string, now time.Time, dir Direction) (time.Time, string, bool, bool) {
	m := dayPattern.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, "", false, false
	}
	g := func(name string) string { return m[dayPattern.SubexpIndex(name)] }
	today := startOfDay(now)
	expr := strings.TrimSpace(m[0])

	switch {
	case g("aftertomorrow") != "":
		return today.AddDate(0, 0, 2), expr, false, true
	case g("beforeyesterday") != "":
		return today.AddDate(0, 0, -2), expr, false, true
	case g("today") != "":
		return today, expr, false, true
	case g("tomorrow") != "":
		return today.AddDate(0, 0, 1), expr, false, true
	case g("yesterday") != "":
		return today.AddDate(0, 0, -1), expr, false, true
	case g("evening") != "":
		return atHour(today, eveningHour), expr, true, true
	case g("morning") != "":
		return atHour(today, morningHour), expr, true, true
	case g("afternoon") != "":
		return atHour(today, afternoonHour), expr, true, true
	case g("weekday") != "":
		q := g("qualifier")
		past := q == "dernier" || (q == "" && dir == Past)
		return resolveWeekday(today, weekdays[g("weekday")], q == "prochain", past), expr, false, true
	case g("relative") != "":
		d, err := parseFrench(expr, now)
		return d, expr, false, err == nil
	case g("calendar") != "":
		d, ok := resolveCalendar(today, expr, g("day"), months[g("month")], g("year") != "")
		return d, expr, false, ok
	case g("numeric") != "":
		month, _ := strconv.Atoi(g("nmonth"))
		d, ok := resolveCalendar(today, expr, g("nday"), time.Month(month), true)
		return d, expr, false, ok
	}
	return time.Time{}, "", false, false
}

func detectTime(lower string) (int, int, string, bool) {
	m := timePattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, "", false
	}
	return hour, minute, strings.TrimSpace(m[0]), true
}

// resolveWeekday finds the target weekday relative to today.
// Without a qualifier the same weekday means today.
func resolveWeekday(today time.Time, target time.Weekday, next, past bool) time.Time {
	diff := int(target - today.Weekday())
	if past {
		if diff >= 0 {
			diff -= 7
		}
		return today.AddDate(0, 0, diff)
	}
	if diff < 0 || (diff == 0 && next) {
		diff += 7
	}
	return today.AddDate(0, 0, diff)
}

func atHour(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), "’", "'")
}
