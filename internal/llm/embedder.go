package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/jarvis/internal/config"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder wraps langchaingo embeddings with dimension validation.
type Embedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewEmbedder creates an embedder for cfg.EmbedProvider.
func NewEmbedder(cfg config.Config, logger *slog.Logger, m *metrics.Collector) (*Embedder, error) {
	client, err := embeddingClient(cfg)
	if err != nil {
		return nil, err
	}
	model, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.EmbedProvider, err)
	}
	return NewEmbedderFrom(model, cfg.EmbedModel, cfg.EmbedDimension, logger, m), nil
}

// embeddingClient builds the provider backend. Only ollama and openai
// expose an embeddings endpoint through langchaingo.
func embeddingClient(cfg config.Config) (embeddings.EmbedderClient, error) {
	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		c, err := ollama.New(ollama.WithModel(cfg.EmbedModel), ollama.WithServerURL(cfg.OllamaHost))
		if err != nil {
			return nil, fmt.Errorf("create ollama embedding client: %w", err)
		}
		return c, nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("embed provider %s: OPENAI_API_KEY is not set", cfg.EmbedProvider)
		}
		c, err := openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithEmbeddingModel(cfg.EmbedModel))
		if err != nil {
			return nil, fmt.Errorf("create openai embedding client: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
}

// NewEmbedderFrom wraps an existing langchaingo embedder.
func NewEmbedderFrom(model embeddings.Embedder, name string, dimension int, logger *slog.Logger, m *metrics.Collector) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		model:     model,
		dimension: dimension,
		modelName: name,
		logger:    logger,
		metrics:   m,
	}
}

// Embed returns the vector for a single query text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.observe("embed", 1, len(text), func() (err error) {
		vector, err = e.model.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := e.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch returns one vector per text, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	total := 0
	for _, t := range texts {
		total += len(t)
	}
	var vectors [][]float32
	err := e.observe("embed batch", len(texts), total, func() (err error) {
		vectors, err = e.model.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := e.checkDimension(v); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vectors, nil
}

// observe times call under the embedding operation and logs its outcome.
func (e *Embedder) observe(op string, count, chars int, call func() error) error {
	start := time.Now()
	err := call()
	elapsed := time.Since(start)

	attrs := []any{"model", e.modelName, "texts", count, "chars", chars, "duration_ms", elapsed.Milliseconds()}
	if err != nil {
		e.metrics.RecordError(metrics.OpEmbedding)
		e.logger.Warn(op+" failed", append(attrs, "error", err)...)
		return fmt.Errorf("%s: %w", op, wrapFatalError(err))
	}
	e.metrics.RecordTiming(metrics.OpEmbedding, elapsed)
	e.logger.Debug(op+" complete", attrs...)
	return nil
}

func (e *Embedder) checkDimension(v []float32) error {
	if len(v) != e.dimension {
		return fmt.Errorf("dimension mismatch: got %d, want %d", len(v), e.dimension)
	}
	return nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}
