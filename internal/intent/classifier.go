package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/jarvis/internal/metrics"
)

// ProfileSmall is the model profile used for classification.
const ProfileSmall = "small"

// Generator produces raw text from a model profile.
type Generator interface {
	GenerateWith(ctx context.Context, profile, prompt, system string) (string, error)
}

// Classifier turns utterances into validated intent results.
// The generative path is tried first; the deterministic fallback always succeeds.
type Classifier struct {
	gen     Generator
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewClassifier creates a classifier. A nil generator disables the generative path.
func NewClassifier(gen Generator, logger *slog.Logger, m *metrics.Collector) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, logger: logger, metrics: m}
}

// Classify never fails. Empty input yields unknown with low priority.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return unknownResult("")
	}

	if c.gen != nil {
		start := time.Now()
		res, err := c.classifyWithModel(ctx, normalized)
		if err == nil {
			c.metrics.RecordTiming(metrics.OpClassifyLLM, time.Since(start))
			c.metrics.RecordIntent(string(res.Primary), metrics.PathLLM)
			c.logger.Debug("classified with model",
				"text", truncate(normalized, 60),
				"intent", res.Primary,
				"confidence", res.Confidence)
			return res
		}
		c.logger.Warn("classification failed, using fallback", "error", err)
	}

	start := time.Now()
	res := Fallback(normalized)
	c.metrics.RecordTiming(metrics.OpClassifyFallback, time.Since(start))
	c.metrics.RecordIntent(string(res.Primary), metrics.PathFallback)
	return res
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) (Result, error) {
	raw, err := c.gen.GenerateWith(ctx, ProfileSmall, userPrompt(text), SystemPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	obj, err := ExtractJSON(raw)
	if err != nil {
		return Result{}, err
	}
	return Coerce(obj, text), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
