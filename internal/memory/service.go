// Package memory stores personal facts and answers questions about them.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/jarvis/internal/events"
	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/raphaelgruber/jarvis/internal/router"
	"github.com/raphaelgruber/jarvis/internal/temporal"
)

// DefaultTopK is the search depth used when none is configured.
const DefaultTopK = 5

// ProfileMedium is the model profile used for answer synthesis.
const ProfileMedium = "medium"

// AnswerNoMemory is returned when no stored memory matches a question.
const AnswerNoMemory = "Je n'ai trouvé aucun souvenir correspondant."

const systemPrompt = "Tu es Jarvis, un assistant personnel pour la maison. Réponds en français. " +
	"Utilise PRIORITAIREMENT les informations mémorisées pour répondre. " +
	"Si aucune information pertinente n'est disponible, dis-le clairement."

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store persists and searches memories.
type Store interface {
	QueryCreateMemory(ctx context.Context, in models.MemoryInput) (*models.Memory, error)
	QuerySearchMemories(ctx context.Context, embedding []float32, limit int, dates *models.DateRange) ([]models.MemoryHit, error)
}

// Generator produces text with a model profile.
type Generator interface {
	GenerateWith(ctx context.Context, profile, prompt, system string) (string, error)
}

// Service implements router.MemoryCapability.
type Service struct {
	embedder  Embedder
	store     Store
	generator Generator
	publisher events.Publisher
	topK      int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTopK sets the search depth.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithClock sets the reference clock for temporal detection.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type discard struct{}

func (discard) Publish(string, any) {}

// NewService creates a memory service.
func NewService(e Embedder, st Store, g Generator, opts ...Option) *Service {
	s := &Service{
		embedder:  e,
		store:     st,
		generator: g,
		publisher: discard{},
		topK:      DefaultTopK,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ router.MemoryCapability = (*Service)(nil)

// Add stores text as a memory, anchored to the date it mentions if any.
func (s *Service) Add(ctx context.Context, text string) (router.AddResult, error) {
	in := models.MemoryInput{Content: text, Source: "user"}

	var result router.AddResult
	if r, ok := temporal.DetectRecurrence(text); ok {
		// A recurring fact has no single event date.
		result.Expression = r.Expression
	} else if m, ok := temporal.Detect(text, s.now()); ok {
		date := m.Date
		in.EventDate = &date
		result.EventDate = &date
		result.Expression = m.Expression
	}
	if result.Expression != "" {
		expr := result.Expression
		in.Expression = &expr
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return router.AddResult{}, fmt.Errorf("embed memory: %w", err)
	}
	in.Embedding = emb

	mem, err := s.store.QueryCreateMemory(ctx, in)
	if err != nil {
		return router.AddResult{}, fmt.Errorf("store memory: %w", err)
	}

	s.logger.Debug("memory added", "id", models.RecordKey(mem.ID), "expression", result.Expression)
	s.publisher.Publish(events.MemoryAdded, events.MemoryAddedPayload{
		ID:         models.RecordKey(mem.ID),
		Text:       text,
		EventDate:  result.EventDate,
		Expression: result.Expression,
	})
	return result, nil
}

// Query answers a question from stored memories. A date or period in the
// question restricts the search to that span, widening to all memories when
// the span has none.
func (s *Service) Query(ctx context.Context, question string) (router.Answer, error) {
	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return router.Answer{}, fmt.Errorf("embed question: %w", err)
	}

	var hits []models.MemoryHit
	dateFiltered := false
	if iv, ok := temporal.Resolve(question, s.now()); ok {
		s.logger.Debug("date filter", "expression", iv.Expression, "from", iv.Start, "to", iv.End)
		hits, err = s.store.QuerySearchMemories(ctx, emb, s.topK, &models.DateRange{From: iv.Start, To: iv.End})
		if err != nil {
			return router.Answer{}, fmt.Errorf("search memories: %w", err)
		}
		dateFiltered = len(hits) > 0
	}
	if len(hits) == 0 {
		hits, err = s.store.QuerySearchMemories(ctx, emb, s.topK, nil)
		if err != nil {
			return router.Answer{}, fmt.Errorf("search memories: %w", err)
		}
	}

	queried := events.MemoryQueriedPayload{
		Question:    question,
		SourceCount: len(hits),
		DateFilter:  dateFiltered,
	}

	if len(hits) == 0 {
		s.publisher.Publish(events.MemoryQueried, queried)
		return router.Answer{Text: AnswerNoMemory}, nil
	}

	answer, err := s.generator.GenerateWith(ctx, ProfileMedium, buildPrompt(question, hits), systemPrompt)
	if err != nil {
		return router.Answer{}, fmt.Errorf("synthesize answer: %w", err)
	}
	s.publisher.Publish(events.MemoryQueried, queried)

	sources := make([]string, len(hits))
	for i, h := range hits {
		sources[i] = h.Content
	}
	return router.Answer{Text: strings.TrimSpace(answer), Sources: sources}, nil
}

// Search returns the memories closest to query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.MemoryHit, error) {
	if limit <= 0 {
		limit = s.topK
	}
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.store.QuerySearchMemories(ctx, emb, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	s.publisher.Publish(events.MemorySearched, events.MemorySearchedPayload{
		Query:   query,
		Results: len(hits),
	})
	return hits, nil
}

func buildPrompt(question string, hits []models.MemoryHit) string {
	var b strings.Builder
	b.WriteString("Informations mémorisées:\n")
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "# Souvenir %d", i+1)
		if h.Source != "" {
			fmt.Fprintf(&b, " (source: %s)", h.Source)
		}
		if h.EventDate != nil {
			fmt.Fprintf(&b, " [le %s]", h.EventDate.Format(time.RFC3339))
		}
		b.WriteString("\n")
		b.WriteString(h.Content)
	}
	fmt.Fprintf(&b, "\n\nQuestion:\n%s\n\nRéponse:", question)
	return b.String()
}
