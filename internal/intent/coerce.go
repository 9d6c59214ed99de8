package intent

import (
	"strings"
)

const defaultConfidence = 0.5

// Coerce validates every field of a decoded classification independently,
// substituting a safe default for anything missing or malformed.
func Coerce(obj map[string]any, original string) Result {
	res := Result{
		Primary:          Unknown,
		Confidence:       defaultConfidence,
		ExtractedContent: original,
		Priority:         PriorityNormal,
	}

	if s, ok := obj["primary"].(string); ok {
		res.Primary, _ = ParseType(s)
	}

	if f, ok := obj["confidence"].(float64); ok && f >= 0 && f <= 1 {
		res.Confidence = f
	}

	if s, ok := obj["extractedContent"].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			res.ExtractedContent = s
		}
	}

	if m, ok := obj["entities"].(map[string]any); ok {
		res.Entities = coerceEntities(m)
	}

	if s, ok := obj["priority"].(string); ok {
		switch Priority(s) {
		case PriorityHigh, PriorityLow:
			res.Priority = Priority(s)
		}
	}

	if s, ok := obj["secondary"].(string); ok {
		if t, known := ParseType(s); known && t != Unknown {
			res.Secondary = &t
		}
	}

	return res
}

func coerceEntities(m map[string]any) Entities {
	var e Entities
	for key, v := range m {
		field := e.slot(key)
		if field == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			continue
		}
		*field = &s
	}
	return e
}
