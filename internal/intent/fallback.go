package intent

import (
	"regexp"
	"strings"
)

// addPatterns match imperative "remember this" commands anchored at the start
// of the utterance. The matched prefix is stripped from the extracted content.
var addPatterns = compileAll(
	`^ajoute(?:\s+(?:que|qu'|une\s+information|une\s+info|le\s+fait\s+que))?\s+`,
	`^mémorise(?:\s+(?:que|qu'|le\s+fait\s+que))?\s+`,
	`^retiens(?:\s+(?:que|qu'|le\s+fait\s+que))?\s+`,
	`^note(?:\s+(?:que|qu'|le\s+fait\s+que))?\s+`,
	`^souviens[-\s]toi(?:\s+(?:que|qu'))?\s+`,
	`^n'?oublie\s+pas(?:\s+(?:que|qu'))?\s+`,
	`^enregistre(?:\s+(?:que|qu'|le\s+fait\s+que))?\s+`,
)

// queryPatterns match interrogative forms anywhere in the utterance.
// RE2 word boundaries are ASCII-only, so the pattern starting with an
// accented letter anchors on a non-letter instead.
var queryPatterns = compileAll(
	`\bqu['’]?est[-\s]ce\s+que\b`,
	`\bqu['’]?est[-\s]ce\s+qu['’]`,
	`\brappelle[-\s]moi\b`,
	`\bdis[-\s]moi\b`,
	`\bqu['’]?ai[-\s]je\b`,
	`\bqu['’]?avais[-\s]je\b`,
	`\bqu['’]?avons[-\s]nous\b`,
	`\bqu['’]?est[-\s]il\b`,
	`\bquand\s+(?:est|ai|avais|se|a|dois)\b`,
	`(?:^|[^\p{L}\p{N}_])à\s+quelle\s+heure\b`,
	`\bquel(?:le)?\s+(?:est|était|heure|jour|date)\b`,
	`\bai[-\s]je\s+(?:prévu|quelque\s+chose|un\s+rendez)\b`,
	`\bj['’]?ai[-\s](?:prévu|quelque)\b`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Fallback classifies text with the deterministic French command patterns.
// It is pure and always succeeds.
func Fallback(text string) Result {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return unknownResult("")
	}

	for _, re := range addPatterns {
		loc := re.FindStringIndex(normalized)
		if loc == nil {
			continue
		}
		if content := strings.TrimSpace(normalized[loc[1]:]); content != "" {
			return Result{
				Primary:          MemoryAdd,
				Confidence:       1.0,
				ExtractedContent: content,
				Priority:         PriorityNormal,
			}
		}
	}

	for _, re := range queryPatterns {
		if re.MatchString(normalized) {
			return Result{
				Primary:          MemoryQuery,
				Confidence:       1.0,
				ExtractedContent: normalized,
				Priority:         PriorityNormal,
			}
		}
	}

	return unknownResult(normalized)
}
