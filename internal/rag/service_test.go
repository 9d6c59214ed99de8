package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err     error
	batched []string
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batched = append(f.batched, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeStore struct {
	hits    []models.ChunkHit
	err     error
	limit   int
	indexed []models.ChunkInput
}

func (f *fakeStore) QueryCreateChunk(_ context.Context, in models.ChunkInput) (*models.DocumentChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.indexed = append(f.indexed, in)
	return &models.DocumentChunk{Content: in.Content, Source: in.Source, ChunkIndex: in.ChunkIndex}, nil
}

func (f *fakeStore) QuerySearchChunks(_ context.Context, _ []float32, limit int) ([]models.ChunkHit, error) {
	f.limit = limit
	return f.hits, f.err
}

type fakeGenerator struct {
	answer string
	err    error
	prompt string
	system string
	calls  int
}

func (f *fakeGenerator) GenerateWith(_ context.Context, _, prompt, system string) (string, error) {
	f.calls++
	f.prompt, f.system = prompt, system
	return f.answer, f.err
}

// Stream emits the answer word by word.
func (f *fakeGenerator) Stream(ctx context.Context, _, prompt, system string, onToken func(string) error) (string, error) {
	f.calls++
	f.prompt, f.system = prompt, system
	if f.err != nil {
		return "", f.err
	}
	for _, w := range strings.SplitAfter(f.answer, " ") {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := onToken(w); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

func TestAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("answers from chunks", func(t *testing.T) {
		st := &fakeStore{hits: []models.ChunkHit{
			{Content: "La chaudière se purge en novembre.", Source: "maison.md", ChunkIndex: 3, Score: 0.91},
			{Content: "Le filtre se change tous les ans.", Source: "maison.md", ChunkIndex: 4, Score: 0.8},
			{Content: "Garantie de 5 ans.", Source: "facture.pdf", ChunkIndex: 0, Score: 0.7},
		}}
		gen := &fakeGenerator{answer: "En novembre.\n"}
		svc := NewService(&fakeEmbedder{}, st, gen, WithTopK(3))

		ans, err := svc.Ask(ctx, "quand purger la chaudière ?")
		require.NoError(t, err)
		assert.Equal(t, "En novembre.", ans.Text)
		assert.Equal(t, []string{"maison.md", "facture.pdf"}, ans.Sources)
		assert.Equal(t, 3, st.limit)

		assert.Equal(t, systemPrompt, gen.system)
		assert.True(t, strings.HasPrefix(gen.prompt, "Contexte:\n# Extrait 1 (source: maison.md, chunk: 3)\nLa chaudière se purge en novembre."))
		assert.Contains(t, gen.prompt, "\n\n# Extrait 3 (source: facture.pdf, chunk: 0)\nGarantie de 5 ans.")
		assert.True(t, strings.HasSuffix(gen.prompt, "\n\nQuestion:\nquand purger la chaudière ?\n\nRéponse:"))
	})

	t.Run("empty index", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc := NewService(&fakeEmbedder{}, &fakeStore{}, gen)

		ans, err := svc.Ask(ctx, "question")
		require.NoError(t, err)
		assert.Equal(t, AnswerNoContext, ans.Text)
		assert.Nil(t, ans.Sources)
		assert.Zero(t, gen.calls)
	})

	t.Run("default top k", func(t *testing.T) {
		st := &fakeStore{}
		svc := NewService(&fakeEmbedder{}, st, &fakeGenerator{}, WithTopK(0))

		_, err := svc.Ask(ctx, "question")
		require.NoError(t, err)
		assert.Equal(t, DefaultTopK, st.limit)
	})

	t.Run("embedding failure", func(t *testing.T) {
		svc := NewService(&fakeEmbedder{err: errors.New("ollama down")}, &fakeStore{}, &fakeGenerator{})

		_, err := svc.Ask(ctx, "question")
		assert.ErrorContains(t, err, "embed question")
	})

	t.Run("generator failure", func(t *testing.T) {
		st := &fakeStore{hits: []models.ChunkHit{{Content: "x", Source: "a"}}}
		svc := NewService(&fakeEmbedder{}, st, &fakeGenerator{err: errors.New("boom")})

		_, err := svc.Ask(ctx, "question")
		assert.ErrorContains(t, err, "synthesize answer")
	})
}

func TestAskStream(t *testing.T) {
	ctx := context.Background()

	t.Run("sources before tokens", func(t *testing.T) {
		st := &fakeStore{hits: []models.ChunkHit{{Content: "Purge en novembre.", Source: "maison.md"}}}
		gen := &fakeGenerator{answer: "En novembre, avant l'hiver."}
		svc := NewService(&fakeEmbedder{}, st, gen)

		var order []string
		ans, err := svc.AskStream(ctx, "quand purger ?",
			func(src []string) error {
				order = append(order, "sources:"+strings.Join(src, ","))
				return nil
			},
			func(tok string) error {
				order = append(order, tok)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, []string{"sources:maison.md", "En ", "novembre, ", "avant ", "l'hiver."}, order)
		assert.Equal(t, "En novembre, avant l'hiver.", ans.Text)
		assert.Equal(t, systemPrompt, gen.system)
	})

	t.Run("empty index", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc := NewService(&fakeEmbedder{}, &fakeStore{}, gen)

		var tokens []string
		ans, err := svc.AskStream(ctx, "question",
			func([]string) error { return nil },
			func(tok string) error { tokens = append(tokens, tok); return nil })
		require.NoError(t, err)
		assert.Equal(t, []string{AnswerNoContext}, tokens)
		assert.Equal(t, AnswerNoContext, ans.Text)
		assert.Zero(t, gen.calls)
	})

	t.Run("consumer stops the stream", func(t *testing.T) {
		st := &fakeStore{hits: []models.ChunkHit{{Content: "x", Source: "a"}}}
		svc := NewService(&fakeEmbedder{}, st, &fakeGenerator{answer: "un deux trois"})
		gone := errors.New("client gone")

		seen := 0
		_, err := svc.AskStream(ctx, "question",
			func([]string) error { return nil },
			func(string) error { seen++; return gone })
		assert.ErrorIs(t, err, gone)
		assert.Equal(t, 1, seen)
	})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("splits and indexes", func(t *testing.T) {
		st := &fakeStore{}
		svc := NewService(&fakeEmbedder{}, st, &fakeGenerator{}, WithChunking(40, 0))

		text := strings.Repeat("La chaudière est au sous-sol. ", 6)
		res, err := svc.Ingest(ctx, "maison.md", text)
		require.NoError(t, err)

		assert.Equal(t, "maison.md", res.Source)
		assert.Greater(t, res.Chunks, 1)
		require.Len(t, st.indexed, res.Chunks)
		for i, in := range st.indexed {
			assert.Equal(t, i, in.ChunkIndex)
			assert.Equal(t, "maison.md", in.Source)
			assert.NotEmpty(t, in.Embedding)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		st := &fakeStore{}
		svc := NewService(&fakeEmbedder{}, st, &fakeGenerator{})

		res, err := svc.Ingest(ctx, "vide.txt", "  \n ")
		require.NoError(t, err)
		assert.Zero(t, res.Chunks)
		assert.Empty(t, st.indexed)
	})

	t.Run("store failure", func(t *testing.T) {
		svc := NewService(&fakeEmbedder{}, &fakeStore{err: errors.New("db down")}, &fakeGenerator{})

		_, err := svc.Ingest(ctx, "a.md", "du texte")
		assert.ErrorContains(t, err, "index a.md chunk 0")
	})

	t.Run("markdown sections", func(t *testing.T) {
		st := &fakeStore{}
		emb := &fakeEmbedder{}
		svc := NewService(emb, st, &fakeGenerator{})

		text := "---\ntitle: Maison\ntags: [chauffage]\n---\n" +
			"Introduction courte.\n\n" +
			"## Chaudière\nEntretien chaque automne.\n\n" +
			"### Contrat\nNuméro 42-A.\n"
		res, err := svc.Ingest(ctx, "maison.md", text)
		require.NoError(t, err)

		assert.Equal(t, "Maison", res.Title)
		assert.Equal(t, 3, res.Chunks)
		require.Len(t, st.indexed, 3)
		assert.Equal(t, "Introduction courte.", st.indexed[0].Content)
		assert.Equal(t, "Numéro 42-A.", st.indexed[2].Content)
		assert.Equal(t, 2, st.indexed[2].ChunkIndex)

		require.Len(t, emb.batched, 3)
		assert.Equal(t, "Maison\n\nIntroduction courte.", emb.batched[0])
		assert.Equal(t, "Maison > ## Chaudière > ### Contrat\n\nNuméro 42-A.", emb.batched[2])
		for _, in := range st.indexed {
			assert.NotContains(t, in.Content, "title:")
		}
	})
}

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		title    string
		paths    []string
		metadata map[string]any
	}{
		{
			name:  "plain text",
			text:  "Une seule ligne.",
			paths: []string{""},
		},
		{
			name:  "title from h1",
			text:  "# Notes\ncorps\n## Détail\nplus",
			title: "Notes",
			paths: []string{"# Notes", "# Notes > ## Détail"},
		},
		{
			name:     "frontmatter",
			text:     "---\nname: Voiture\nkm: 120000\n---\nrévision faite",
			title:    "Voiture",
			paths:    []string{""},
			metadata: map[string]any{"name": "Voiture", "km": 120000},
		},
		{
			name:  "sibling headings reset path",
			text:  "## A\na\n### B\nb\n## C\nc",
			paths: []string{"## A", "## A > ### B", "## C"},
		},
		{
			name:  "empty headings are skipped",
			text:  "## Vide\n## Plein\ncontenu",
			paths: []string{"## Plein"},
		},
		{
			name:     "malformed frontmatter",
			text:     "---\n: [\n---\ntexte",
			paths:    []string{""},
			metadata: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseDocument(tt.text)
			assert.Equal(t, tt.title, doc.Title)

			paths := make([]string, len(doc.Sections))
			for i, s := range doc.Sections {
				paths[i] = s.Path
			}
			assert.Equal(t, tt.paths, paths)

			if tt.metadata != nil {
				assert.Equal(t, tt.metadata, doc.Metadata)
			}
		})
	}
}
