package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var (
	ordinalSuffix = regexp.MustCompile(`\b(\d{1,2})er\b`)
	indefiniteOne = regexp.MustCompile(`\bune?\b`)
)

// parseFrench resolves a French date expression relative to now and returns
// the resolved wall-clock day in now's location.
func parseFrench(expr string, now time.Time) (time.Time, error) {
	expr = ordinalSuffix.ReplaceAllString(expr, "$1")
	expr = indefiniteOne.ReplaceAllString(expr, "1")

	dt, err := dps.Parse(&dps.Configuration{
		Languages:           []string{"fr"},
		CurrentTime:         now,
		PreferredDateSource: dps.Future,
	}, expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", expr, err)
	}
	if dt.Time.IsZero() {
		return time.Time{}, fmt.Errorf("parse %q: no date", expr)
	}
	t := dt.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
}

// resolveCalendar resolves "14 juillet", "1er janvier 2027" or "15/03/2026".
// The parsed day must be the one written: an impossible date such as
// "31 février" is rejected instead of rolling over. Without a year, a date
// already past this year resolves to next year.
func resolveCalendar(today time.Time, expr, dayStr string, month time.Month, hasYear bool) (time.Time, bool) {
	d, err := parseFrench(expr, today)
	if err != nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	if !hasYear && d.Before(today) {
		d = time.Date(d.Year()+1, d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		if d.Day() != day {
			return time.Time{}, false
		}
	}
	return d, true
}
