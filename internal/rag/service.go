// Package rag answers questions from indexed documents.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/raphaelgruber/jarvis/internal/router"
	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults used when none are configured.
const (
	DefaultTopK         = 5
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// ProfileMedium is the model profile used for answer synthesis.
const ProfileMedium = "medium"

// AnswerNoContext is returned when the index holds nothing relevant.
const AnswerNoContext = "Je n'ai trouvé aucune information pertinente dans les documents."

const systemPrompt = `Tu es un assistant expert du domaine.
Réponds en français.
Utilise PRIORITAIREMENT le contexte fourni.
Si le contexte ne contient pas la réponse, dis-le explicitement.`

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store indexes and searches document chunks.
type Store interface {
	QueryCreateChunk(ctx context.Context, in models.ChunkInput) (*models.DocumentChunk, error)
	QuerySearchChunks(ctx context.Context, embedding []float32, limit int) ([]models.ChunkHit, error)
}

// Generator produces text with a model profile, whole or streamed.
type Generator interface {
	GenerateWith(ctx context.Context, profile, prompt, system string) (string, error)
	Stream(ctx context.Context, profile, prompt, system string, onToken func(token string) error) (string, error)
}

// IngestResult summarizes an ingestion.
type IngestResult struct {
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	Chunks int    `json:"chunks"`
}

// Service implements router.RetrievalCapability.
type Service struct {
	embedder  Embedder
	store     Store
	generator Generator
	splitter  textsplitter.TextSplitter
	topK      int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTopK sets the retrieval depth.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithChunking sets the splitter chunk size and overlap.
func WithChunking(size, overlap int) Option {
	return func(s *Service) {
		s.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a retrieval service.
func NewService(e Embedder, st Store, g Generator, opts ...Option) *Service {
	s := &Service{
		embedder:  e,
		store:     st,
		generator: g,
		topK:      DefaultTopK,
		logger:    slog.Default(),
	}
	WithChunking(DefaultChunkSize, DefaultChunkOverlap)(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ router.RetrievalCapability = (*Service)(nil)

// Ask answers question from the closest document chunks.
func (s *Service) Ask(ctx context.Context, question string) (router.Answer, error) {
	hits, err := s.retrieve(ctx, question)
	if err != nil {
		return router.Answer{}, err
	}
	if len(hits) == 0 {
		return router.Answer{Text: AnswerNoContext}, nil
	}

	answer, err := s.generator.GenerateWith(ctx, ProfileMedium, buildPrompt(question, hits), systemPrompt)
	if err != nil {
		return router.Answer{}, fmt.Errorf("synthesize answer: %w", err)
	}

	s.logger.Debug("rag answer", "chunks", len(hits))
	return router.Answer{Text: strings.TrimSpace(answer), Sources: sources(hits)}, nil
}

// AskStream answers like Ask, streaming the synthesized answer to onToken.
// onSources receives the source names before the first token. An empty
// index streams AnswerNoContext as a single token.
func (s *Service) AskStream(ctx context.Context, question string, onSources func([]string) error, onToken func(token string) error) (router.Answer, error) {
	hits, err := s.retrieve(ctx, question)
	if err != nil {
		return router.Answer{}, err
	}
	src := sources(hits)
	if err := onSources(src); err != nil {
		return router.Answer{}, err
	}
	if len(hits) == 0 {
		if err := onToken(AnswerNoContext); err != nil {
			return router.Answer{}, err
		}
		return router.Answer{Text: AnswerNoContext}, nil
	}

	answer, err := s.generator.Stream(ctx, ProfileMedium, buildPrompt(question, hits), systemPrompt, onToken)
	if err != nil {
		return router.Answer{}, fmt.Errorf("synthesize answer: %w", err)
	}
	s.logger.Debug("rag answer streamed", "chunks", len(hits))
	return router.Answer{Text: strings.TrimSpace(answer), Sources: src}, nil
}

func (s *Service) retrieve(ctx context.Context, question string) ([]models.ChunkHit, error) {
	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := s.store.QuerySearchChunks(ctx, emb, s.topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return hits, nil
}

// Ingest splits text into chunks, embeds them and indexes them under source.
// Markdown frontmatter is dropped and chunks never cross a heading; each
// chunk is embedded together with the document title and its heading path.
func (s *Service) Ingest(ctx context.Context, source, text string) (IngestResult, error) {
	doc := ParseDocument(text)

	var chunks, inputs []string
	for _, sec := range doc.Sections {
		split, err := s.splitter.SplitText(sec.Content)
		if err != nil {
			return IngestResult{}, fmt.Errorf("split %s: %w", source, err)
		}
		for _, c := range split {
			if strings.TrimSpace(c) == "" {
				continue
			}
			chunks = append(chunks, c)
			inputs = append(inputs, embedText(doc.Title, sec.Path, c))
		}
	}
	if len(chunks) == 0 {
		return IngestResult{Source: source, Title: doc.Title}, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embed %s: %w", source, err)
	}

	for i, chunk := range chunks {
		_, err := s.store.QueryCreateChunk(ctx, models.ChunkInput{
			Content:    chunk,
			Embedding:  vectors[i],
			Source:     source,
			ChunkIndex: i,
		})
		if err != nil {
			return IngestResult{}, fmt.Errorf("index %s chunk %d: %w", source, i, err)
		}
	}

	s.logger.Info("document ingested", "source", source, "title", doc.Title, "sections", len(doc.Sections), "chunks", len(chunks))
	return IngestResult{Source: source, Title: doc.Title, Chunks: len(chunks)}, nil
}

func buildPrompt(question string, hits []models.ChunkHit) string {
	var b strings.Builder
	b.WriteString("Contexte:\n")
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "# Extrait %d (source: %s, chunk: %d)\n%s", i+1, h.Source, h.ChunkIndex, h.Content)
	}
	fmt.Fprintf(&b, "\n\nQuestion:\n%s\n\nRéponse:", question)
	return b.String()
}

// sources lists distinct source names in rank order.
func sources(hits []models.ChunkHit) []string {
	seen := make(map[string]bool, len(hits))
	var out []string
	for _, h := range hits {
		if h.Source == "" || seen[h.Source] {
			continue
		}
		seen[h.Source] = true
		out = append(out, h.Source)
	}
	return out
}
