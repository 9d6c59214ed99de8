package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DocumentChunk is an indexed piece of a source document.
type DocumentChunk struct {
	ID surrealmodels.RecordID `json:"id"`

	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Source     string    `json:"source"`      // file path or URL
	ChunkIndex int       `json:"chunk_index"` // order within source

	CreatedAt time.Time `json:"created"`
}

// ChunkInput is the input structure for indexing a chunk.
type ChunkInput struct {
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
	Source     string    `json:"source"`
	ChunkIndex int       `json:"chunk_index"`
}

// ChunkHit is a chunk returned by vector search with its similarity.
type ChunkHit struct {
	ID         surrealmodels.RecordID `json:"id"`
	Content    string                 `json:"content"`
	Source     string                 `json:"source"`
	ChunkIndex int                    `json:"chunk_index"`
	Score      float64                `json:"score"`
}
