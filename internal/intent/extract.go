package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyOutput indicates the model returned nothing usable.
var ErrEmptyOutput = errors.New("empty model output")

// FormatError reports generative output that could not be decoded into a
// JSON object. Callers treat it as a signal to fall back.
type FormatError struct {
	Candidate string
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed classification output: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fenceBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")
)

// candidateJSON narrows free-form model output down to the text most likely
// to hold the JSON object.
func candidateJSON(raw string) string {
	text := thinkBlock.ReplaceAllString(raw, "")

	if m := fenceBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// ExtractJSON decodes the JSON object embedded in model output.
// Any failure is returned as a *FormatError.
func ExtractJSON(raw string) (map[string]any, error) {
	candidate := candidateJSON(raw)
	if candidate == "" {
		return nil, &FormatError{Candidate: candidate, Err: ErrEmptyOutput}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, &FormatError{Candidate: candidate, Err: err}
	}
	if obj == nil {
		return nil, &FormatError{Candidate: candidate, Err: errors.New("not a JSON object")}
	}
	return obj, nil
}
