// Package agent is the entry point of the dialogue core: it classifies an
// utterance, resolves follow-ups against pending state, routes content
// intents and records the exchange in the session.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/router"
)

// Errors returned by Process.
var (
	// ErrCapability wraps any failure of a delegated capability.
	ErrCapability = errors.New("capability failed")

	// ErrInvalidSource indicates an unrecognized request source.
	ErrInvalidSource = errors.New("invalid source")

	// ErrMissingText indicates a request without a text field.
	ErrMissingText = errors.New("missing text")
)

// ApologyMessage is shown to users when a capability fails.
const ApologyMessage = "Désolé, une erreur est survenue. Veuillez réessayer."

// Fixed answers for meta-intents.
const (
	AnswerConfirmed         = "D'accord, c'est confirmé."
	AnswerNothingPending    = "Il n'y a rien en attente de confirmation."
	AnswerCancelled         = "D'accord, j'annule."
	AnswerNothingToCancel   = "Il n'y a rien à annuler."
	AnswerCorrectionNoticed = "Je prends en compte la correction. Reformulez votre demande complète si nécessaire."
)

// Source identifies where an utterance came from.
type Source string

// Request sources.
const (
	SourceVoice Source = "voice"
	SourceUI    Source = "ui"
	SourceAPI   Source = "api"
)

// ParseSource validates a source. Empty means SourceAPI.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case "":
		return SourceAPI, nil
	case SourceVoice, SourceUI, SourceAPI:
		return src, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
}

// ProcessRequest is one utterance to process.
type ProcessRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
}

// SourceRef is a citation attached to an answer.
type SourceRef struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// ProcessResponse is the shaped answer to a ProcessRequest.
type ProcessResponse struct {
	SessionID            string          `json:"sessionId"`
	Intent               intent.Type     `json:"intent"`
	Confidence           float64         `json:"confidence"`
	Answer               string          `json:"answer"`
	Sources              []SourceRef     `json:"sources,omitempty"`
	Actions              []router.Action `json:"actions,omitempty"`
	HallucinationWarning *string         `json:"hallucinationWarning,omitempty"`
}

// wrapSources turns raw snippets into citations with a uniform score.
func wrapSources(snippets []string) []SourceRef {
	if len(snippets) == 0 {
		return nil
	}
	out := make([]SourceRef, len(snippets))
	for i, s := range snippets {
		out[i] = SourceRef{Text: s, Score: 1}
	}
	return out
}
