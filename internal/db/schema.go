package db

import "fmt"

// schemaTemplate defines the memory and document_chunk tables.
// The single %d verb is the embedding dimension used by both HNSW indexes.
const schemaTemplate = `
    -- ==========================================================================
    -- MEMORY TABLE (personal facts stated by the user)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS memory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON memory TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS event_date ON memory TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS expression ON memory TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS source ON memory TYPE string DEFAULT "user";
    DEFINE FIELD IF NOT EXISTS created ON memory TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS memory_event_date ON memory FIELDS event_date;
    DEFINE INDEX IF NOT EXISTS memory_embedding ON memory FIELDS embedding HNSW DIMENSION %[1]d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- DOCUMENT_CHUNK TABLE (retrieval corpus)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document_chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON document_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON document_chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS source ON document_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS chunk_index ON document_chunk TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created ON document_chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS document_chunk_source ON document_chunk FIELDS source;
    DEFINE INDEX IF NOT EXISTS document_chunk_embedding ON document_chunk FIELDS embedding HNSW DIMENSION %[1]d DIST COSINE TYPE F32;
`

// SchemaSQL returns the schema initialization SQL for an embedding dimension.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}
