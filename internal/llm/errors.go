package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for model operations.
var (
	// ErrFatalAPI marks provider failures that retrying will not fix
	// (exhausted credit, quota, rejected credentials).
	ErrFatalAPI = errors.New("fatal provider error")

	// ErrUnknownProfile indicates a profile name other than small, medium or large.
	ErrUnknownProfile = errors.New("unknown model profile")

	// ErrNoChoices indicates the provider returned an empty response.
	ErrNoChoices = errors.New("no response choices")
)

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err looks like a non-retryable provider failure.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal provider errors with ErrFatalAPI and returns
// other errors unchanged.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
