package temporal

import (
	"regexp"
	"strings"
	"time"
)

// Frequency of a recurring event.
type Frequency string

// Frequencies.
const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Recurrence is a detected repetition such as "tous les mardis".
type Recurrence struct {
	Expression string
	Frequency  Frequency
	Weekday    *time.Weekday // set for weekly recurrences
}

var (
	weeklyPattern  = regexp.MustCompile(`(?:tous\s+les|chaque)\s+(lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)s?\b`)
	dailyPattern   = regexp.MustCompile(`tous\s+les\s+jours|chaque\s+jour|quotidien`)
	monthlyPattern = regexp.MustCompile(`tous\s+les\s+mois|chaque\s+mois|mensuel`)
)

// DetectRecurrence finds a French recurrence pattern in text.
func DetectRecurrence(text string) (*Recurrence, bool) {
	lower := normalize(text)

	if m := weeklyPattern.FindStringSubmatch(lower); m != nil {
		wd := weekdays[m[1]]
		return &Recurrence{Expression: strings.TrimSpace(m[0]), Frequency: Weekly, Weekday: &wd}, true
	}
	if m := dailyPattern.FindString(lower); m != "" {
		return &Recurrence{Expression: m, Frequency: Daily}, true
	}
	if m := monthlyPattern.FindString(lower); m != "" {
		return &Recurrence{Expression: m, Frequency: Monthly}, true
	}
	return nil, false
}
