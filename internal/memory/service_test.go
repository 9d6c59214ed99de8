package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/jarvis/internal/events"
	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Wednesday 11 March 2026, 10:00.
var refNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type searchCall struct {
	limit int
	dates *models.DateRange
}

type fakeStore struct {
	created   []models.MemoryInput
	createErr error

	// dated is returned for date-filtered searches, all otherwise.
	dated     []models.MemoryHit
	all       []models.MemoryHit
	searchErr error
	searches  []searchCall
}

func (f *fakeStore) QueryCreateMemory(_ context.Context, in models.MemoryInput) (*models.Memory, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &models.Memory{
		ID:        surrealmodels.RecordID{Table: "memory", ID: "m1"},
		Content:   in.Content,
		EventDate: in.EventDate,
	}, nil
}

func (f *fakeStore) QuerySearchMemories(_ context.Context, _ []float32, limit int, dates *models.DateRange) ([]models.MemoryHit, error) {
	f.searches = append(f.searches, searchCall{limit: limit, dates: dates})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if dates != nil {
		return f.dated, nil
	}
	return f.all, nil
}

type fakeGenerator struct {
	answer  string
	err     error
	profile string
	prompt  string
	system  string
}

func (f *fakeGenerator) GenerateWith(_ context.Context, profile, prompt, system string) (string, error) {
	f.profile, f.prompt, f.system = profile, prompt, system
	return f.answer, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Name: name, Payload: payload})
}

func newTestService(st *fakeStore, gen *fakeGenerator, pub *recordingPublisher) *Service {
	return NewService(&fakeEmbedder{}, st, gen,
		WithPublisher(pub),
		WithClock(func() time.Time { return refNow }),
		WithTopK(3),
	)
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("with date", func(t *testing.T) {
		st, pub := &fakeStore{}, &recordingPublisher{}
		svc := newTestService(st, &fakeGenerator{}, pub)

		res, err := svc.Add(ctx, "dentiste demain à 14h")
		require.NoError(t, err)

		require.NotNil(t, res.EventDate)
		assert.True(t, time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC).Equal(*res.EventDate))
		assert.Equal(t, "demain à 14h", res.Expression)

		require.Len(t, st.created, 1)
		in := st.created[0]
		assert.Equal(t, "dentiste demain à 14h", in.Content)
		assert.Equal(t, "user", in.Source)
		assert.NotEmpty(t, in.Embedding)
		require.NotNil(t, in.Expression)
		assert.Equal(t, "demain à 14h", *in.Expression)

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.MemoryAdded, pub.events[0].Name)
		payload := pub.events[0].Payload.(events.MemoryAddedPayload)
		assert.Equal(t, "memory:m1", payload.ID)
		assert.Equal(t, "demain à 14h", payload.Expression)
	})

	t.Run("without date", func(t *testing.T) {
		st := &fakeStore{}
		svc := newTestService(st, &fakeGenerator{}, &recordingPublisher{})

		res, err := svc.Add(ctx, "les clés sont dans le tiroir")
		require.NoError(t, err)
		assert.Nil(t, res.EventDate)
		assert.Empty(t, res.Expression)
		assert.Nil(t, st.created[0].EventDate)
		assert.Nil(t, st.created[0].Expression)
	})

	t.Run("recurrence kept as expression", func(t *testing.T) {
		st := &fakeStore{}
		svc := newTestService(st, &fakeGenerator{}, &recordingPublisher{})

		res, err := svc.Add(ctx, "sortir les poubelles tous les mardis")
		require.NoError(t, err)
		assert.Nil(t, res.EventDate)
		assert.Equal(t, "tous les mardis", res.Expression)
	})

	t.Run("weekly recurrence has no event date", func(t *testing.T) {
		st := &fakeStore{}
		svc := newTestService(st, &fakeGenerator{}, &recordingPublisher{})

		res, err := svc.Add(ctx, "je vais à la piscine chaque lundi")
		require.NoError(t, err)
		assert.Nil(t, res.EventDate)
		assert.Equal(t, "chaque lundi", res.Expression)

		require.Len(t, st.created, 1)
		assert.Nil(t, st.created[0].EventDate)
		require.NotNil(t, st.created[0].Expression)
		assert.Equal(t, "chaque lundi", *st.created[0].Expression)
	})

	t.Run("store failure", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := newTestService(&fakeStore{createErr: errors.New("db down")}, &fakeGenerator{}, pub)

		_, err := svc.Add(ctx, "note")
		assert.ErrorContains(t, err, "db down")
		assert.Empty(t, pub.events)
	})

	t.Run("embed failure", func(t *testing.T) {
		svc := NewService(&fakeEmbedder{err: errors.New("ollama down")}, &fakeStore{}, &fakeGenerator{})

		_, err := svc.Add(ctx, "note")
		assert.ErrorContains(t, err, "embed memory")
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	when := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)

	t.Run("date filtered", func(t *testing.T) {
		st := &fakeStore{
			dated: []models.MemoryHit{{Content: "dentiste à 14h", Source: "user", EventDate: &when, Score: 0.9}},
		}
		gen := &fakeGenerator{answer: "  Vous avez le dentiste à 14h.  "}
		pub := &recordingPublisher{}
		svc := newTestService(st, gen, pub)

		ans, err := svc.Query(ctx, "qu'est-ce que j'ai demain ?")
		require.NoError(t, err)
		assert.Equal(t, "Vous avez le dentiste à 14h.", ans.Text)
		assert.Equal(t, []string{"dentiste à 14h"}, ans.Sources)

		require.Len(t, st.searches, 1)
		require.NotNil(t, st.searches[0].dates)
		assert.True(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC).Equal(st.searches[0].dates.From))
		assert.True(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC).Equal(st.searches[0].dates.To))
		assert.Equal(t, 3, st.searches[0].limit)

		assert.Equal(t, ProfileMedium, gen.profile)
		assert.Equal(t, systemPrompt, gen.system)
		assert.Contains(t, gen.prompt, "Informations mémorisées:\n# Souvenir 1 (source: user) [le 2026-03-12T14:00:00Z]\ndentiste à 14h")
		assert.Contains(t, gen.prompt, "Question:\nqu'est-ce que j'ai demain ?\n\nRéponse:")

		require.Len(t, pub.events, 1)
		payload := pub.events[0].Payload.(events.MemoryQueriedPayload)
		assert.True(t, payload.DateFilter)
		assert.Equal(t, 1, payload.SourceCount)
	})

	t.Run("empty day widens search", func(t *testing.T) {
		st := &fakeStore{all: []models.MemoryHit{{Content: "dentiste jeudi"}}}
		gen := &fakeGenerator{answer: "Jeudi."}
		pub := &recordingPublisher{}
		svc := newTestService(st, gen, pub)

		_, err := svc.Query(ctx, "quand est le dentiste demain")
		require.NoError(t, err)
		require.Len(t, st.searches, 2)
		assert.NotNil(t, st.searches[0].dates)
		assert.Nil(t, st.searches[1].dates)

		payload := pub.events[0].Payload.(events.MemoryQueriedPayload)
		assert.False(t, payload.DateFilter)
	})

	t.Run("period filtered", func(t *testing.T) {
		tests := []struct {
			question string
			from, to time.Time
		}{
			{"qu'ai-je fait la semaine dernière ?", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
			{"qu'est-ce que j'ai prévu cette semaine", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
			{"qu'ai-je fait entre lundi et mercredi", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)},
		}
		for _, tt := range tests {
			st := &fakeStore{dated: []models.MemoryHit{{Content: "piscine"}}}
			svc := newTestService(st, &fakeGenerator{answer: "Piscine."}, &recordingPublisher{})

			_, err := svc.Query(ctx, tt.question)
			require.NoError(t, err, tt.question)
			require.Len(t, st.searches, 1, tt.question)
			require.NotNil(t, st.searches[0].dates, tt.question)
			assert.True(t, tt.from.Equal(st.searches[0].dates.From), "%s: from %s", tt.question, st.searches[0].dates.From)
			assert.True(t, tt.to.Equal(st.searches[0].dates.To), "%s: to %s", tt.question, st.searches[0].dates.To)
		}
	})

	t.Run("no date searches once", func(t *testing.T) {
		st := &fakeStore{all: []models.MemoryHit{{Content: "les clés sont dans le tiroir"}}}
		svc := newTestService(st, &fakeGenerator{answer: "Dans le tiroir."}, &recordingPublisher{})

		_, err := svc.Query(ctx, "où sont mes clés")
		require.NoError(t, err)
		require.Len(t, st.searches, 1)
		assert.Nil(t, st.searches[0].dates)
	})

	t.Run("nothing stored", func(t *testing.T) {
		gen := &fakeGenerator{answer: "should not be used"}
		pub := &recordingPublisher{}
		svc := newTestService(&fakeStore{}, gen, pub)

		ans, err := svc.Query(ctx, "où sont mes clés")
		require.NoError(t, err)
		assert.Equal(t, AnswerNoMemory, ans.Text)
		assert.Empty(t, ans.Sources)
		assert.Empty(t, gen.prompt)
		require.Len(t, pub.events, 1)
	})

	t.Run("generator failure", func(t *testing.T) {
		st := &fakeStore{all: []models.MemoryHit{{Content: "x"}}}
		pub := &recordingPublisher{}
		svc := newTestService(st, &fakeGenerator{err: errors.New("timeout")}, pub)

		_, err := svc.Query(ctx, "question")
		assert.ErrorContains(t, err, "synthesize answer")
		assert.Empty(t, pub.events)
	})

	t.Run("search failure", func(t *testing.T) {
		svc := newTestService(&fakeStore{searchErr: errors.New("db down")}, &fakeGenerator{}, &recordingPublisher{})

		_, err := svc.Query(ctx, "question")
		assert.ErrorContains(t, err, "db down")
	})
}

func TestSearch(t *testing.T) {
	st := &fakeStore{all: []models.MemoryHit{{Content: "a"}, {Content: "b"}}}
	pub := &recordingPublisher{}
	svc := newTestService(st, &fakeGenerator{}, pub)

	hits, err := svc.Search(context.Background(), "lettre", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 3, st.searches[0].limit)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.MemorySearched, pub.events[0].Name)
	assert.Equal(t, events.MemorySearchedPayload{Query: "lettre", Results: 2}, pub.events[0].Payload)
}
