package temporal

import "regexp"

// Direction tells whether a sentence is about the past or the future.
type Direction string

// Directions.
const (
	Past    Direction = "past"
	Future  Direction = "future"
	Unknown Direction = "unknown"
)

var (
	pastIndicators = []*regexp.Regexp{
		regexp.MustCompile(`qu'?(?:est-ce qui|ai-je)\s+(?:fait|eu|vu|dit)`),
		regexp.MustCompile(`qu'est-ce que j'ai\s+(?:fait|eu|vu|dit)`),
		regexp.MustCompile(`\b(?:hier|avant-hier|dernier)\b|la\s+semaine\s+derni[eè]re`),
		regexp.MustCompile(`s'est\s+pass[eé]|a\s+eu\s+lieu|avai[ts]`),
	}
	futureIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\bdemain\b|la\s+semaine\s+prochaine|le\s+mois\s+prochain|\bprochain\b`),
		regexp.MustCompile(`pr[eé]vu|planifi[eé]|\b(?:vais|dois|faut)\b`),
	}
)

// DetectDirection reports whether text refers to the past or the future.
// Past indicators win when both are present.
func DetectDirection(text string) Direction {
	lower := normalize(text)
	for _, p := range pastIndicators {
		if p.MatchString(lower) {
			return Past
		}
	}
	for _, p := range futureIndicators {
		if p.MatchString(lower) {
			return Future
		}
	}
	return Unknown
}
