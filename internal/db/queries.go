package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// QueryCreateMemory stores a memory and returns the created record.
func (c *Client) QueryCreateMemory(ctx context.Context, in models.MemoryInput) (*models.Memory, error) {
	if in.Source == "" {
		in.Source = "user"
	}

	eventClause := ""
	vars := map[string]any{
		"content":    in.Content,
		"embedding":  in.Embedding,
		"expression": in.Expression,
		"source":     in.Source,
	}
	if in.EventDate != nil {
		eventClause = "event_date = type::datetime($event_date),"
		vars["event_date"] = in.EventDate.UTC().Format(time.RFC3339)
	}

	sql := fmt.Sprintf(`
		CREATE memory SET
			content = $content,
			embedding = $embedding,
			%s
			expression = $expression,
			source = $source,
			created = time::now()
		RETURN AFTER
	`, eventClause)

	start := time.Now()
	results, err := surrealdb.Query[[]models.Memory](ctx, c.db, sql, vars)
	if err != nil {
		c.metrics.RecordError(metrics.OpDBWrite)
		return nil, fmt.Errorf("create memory: %w", wrapQueryError(err))
	}
	c.metrics.RecordTiming(metrics.OpDBWrite, time.Since(start))

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create memory: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QuerySearchMemories returns the memories most similar to embedding.
// When dates is non-nil only memories whose event_date falls in the
// range are considered, scanned exactly rather than through the HNSW index.
func (c *Client) QuerySearchMemories(
	ctx context.Context,
	embedding []float32,
	limit int,
	dates *models.DateRange,
) ([]models.MemoryHit, error) {
	if limit <= 0 {
		return []models.MemoryHit{}, nil
	}

	vars := map[string]any{
		"emb":   embedding,
		"limit": limit,
	}

	var where string
	if dates != nil {
		where = "WHERE event_date >= type::datetime($from) AND event_date < type::datetime($to)"
		vars["from"] = dates.From.UTC().Format(time.RFC3339)
		vars["to"] = dates.To.UTC().Format(time.RFC3339)
	} else {
		// HNSW with ef=40 for better recall
		where = fmt.Sprintf("WHERE embedding <|%d,40|> $emb", limit)
	}

	sql := fmt.Sprintf(`
		SELECT id, content, event_date, expression, source, created,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM memory
		%s
		ORDER BY score DESC
		LIMIT $limit
	`, where)

	start := time.Now()
	results, err := surrealdb.Query[[]models.MemoryHit](ctx, c.db, sql, vars)
	if err != nil {
		c.metrics.RecordError(metrics.OpDBSearch)
		return nil, fmt.Errorf("search memories: %w", wrapQueryError(err))
	}
	c.metrics.RecordTiming(metrics.OpDBSearch, time.Since(start))

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.MemoryHit{}, nil
}

// QueryCountMemories returns the number of stored memories.
func (c *Client) QueryCountMemories(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM memory GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// QueryCreateChunk indexes a document chunk.
func (c *Client) QueryCreateChunk(ctx context.Context, in models.ChunkInput) (*models.DocumentChunk, error) {
	sql := `
		CREATE document_chunk SET
			content = $content,
			embedding = $embedding,
			source = $source,
			chunk_index = $chunk_index,
			created = time::now()
		RETURN AFTER
	`

	start := time.Now()
	results, err := surrealdb.Query[[]models.DocumentChunk](ctx, c.db, sql, map[string]any{
		"content":     in.Content,
		"embedding":   in.Embedding,
		"source":      in.Source,
		"chunk_index": in.ChunkIndex,
	})
	if err != nil {
		c.metrics.RecordError(metrics.OpDBWrite)
		return nil, fmt.Errorf("create chunk: %w", wrapQueryError(err))
	}
	c.metrics.RecordTiming(metrics.OpDBWrite, time.Since(start))

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create chunk: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QuerySearchChunks returns the document chunks most similar to embedding.
func (c *Client) QuerySearchChunks(ctx context.Context, embedding []float32, limit int) ([]models.ChunkHit, error) {
	if limit <= 0 {
		return []models.ChunkHit{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT id, content, source, chunk_index,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM document_chunk
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC
		LIMIT $limit
	`, limit)

	start := time.Now()
	results, err := surrealdb.Query[[]models.ChunkHit](ctx, c.db, sql, map[string]any{
		"emb":   embedding,
		"limit": limit,
	})
	if err != nil {
		c.metrics.RecordError(metrics.OpDBSearch)
		return nil, fmt.Errorf("search chunks: %w", wrapQueryError(err))
	}
	c.metrics.RecordTiming(metrics.OpDBSearch, time.Since(start))

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.ChunkHit{}, nil
}
