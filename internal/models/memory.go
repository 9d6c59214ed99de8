// Package models defines the records persisted in the Jarvis vector store.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Memory is a personal fact stated by the user.
type Memory struct {
	ID surrealmodels.RecordID `json:"id"`

	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`

	// Temporal anchor detected in the content, if any
	EventDate  *time.Time `json:"event_date,omitempty"`
	Expression *string    `json:"expression,omitempty"` // "demain", "lundi prochain"

	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created"`
}

// MemoryInput is the input structure for creating memories.
type MemoryInput struct {
	Content    string     `json:"content"`
	Embedding  []float32  `json:"embedding"`
	EventDate  *time.Time `json:"event_date,omitempty"`
	Expression *string    `json:"expression,omitempty"`
	Source     string     `json:"source"`
}

// MemoryHit is a memory returned by vector search with its similarity.
type MemoryHit struct {
	ID         surrealmodels.RecordID `json:"id"`
	Content    string                 `json:"content"`
	EventDate  *time.Time             `json:"event_date,omitempty"`
	Expression *string                `json:"expression,omitempty"`
	Source     string                 `json:"source"`
	CreatedAt  time.Time              `json:"created"`
	Score      float64                `json:"score"`
}

// DateRange restricts a memory search to event dates in [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}
