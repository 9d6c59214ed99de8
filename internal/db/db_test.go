// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDimension = 8

var testDB *Client
var testMetrics = metrics.NewCollector()

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, testMetrics)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx, testDimension); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	require.NoError(t, testDB.WipeData(context.Background()))
}

// axis returns a unit vector along dimension i.
func axis(i int) []float32 {
	v := make([]float32, testDimension)
	v[i%testDimension] = 1
	return v
}

func ptr[T any](v T) *T { return &v }

func TestSchemaSQL(t *testing.T) {
	sql := SchemaSQL(1024)
	assert.Contains(t, sql, "memory_embedding ON memory FIELDS embedding HNSW DIMENSION 1024")
	assert.Contains(t, sql, "document_chunk_embedding ON document_chunk FIELDS embedding HNSW DIMENSION 1024")
	assert.NotContains(t, sql, "%!")
}

func TestCreateMemory(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	when := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	mem, err := testDB.QueryCreateMemory(ctx, models.MemoryInput{
		Content:    "rendez-vous chez le dentiste demain",
		Embedding:  axis(0),
		EventDate:  &when,
		Expression: ptr("demain"),
	})
	require.NoError(t, err)

	assert.Equal(t, "rendez-vous chez le dentiste demain", mem.Content)
	assert.Equal(t, "user", mem.Source)
	require.NotNil(t, mem.EventDate)
	assert.True(t, when.Equal(*mem.EventDate))
	require.NotNil(t, mem.Expression)
	assert.Equal(t, "demain", *mem.Expression)
	assert.Equal(t, "memory", mem.ID.Table)

	n, err := testDB.QueryCountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchMemories(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	march := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	inputs := []models.MemoryInput{
		{Content: "les clés sont dans le tiroir", Embedding: axis(0)},
		{Content: "réunion avec Paul", Embedding: axis(1), EventDate: &march, Expression: ptr("samedi")},
		{Content: "acheter du pain", Embedding: axis(2)},
	}
	for _, in := range inputs {
		_, err := testDB.QueryCreateMemory(ctx, in)
		require.NoError(t, err)
	}

	t.Run("nearest first", func(t *testing.T) {
		hits, err := testDB.QuerySearchMemories(ctx, axis(0), 2, nil)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "les clés sont dans le tiroir", hits[0].Content)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("date range filter", func(t *testing.T) {
		day := &models.DateRange{
			From: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		}
		hits, err := testDB.QuerySearchMemories(ctx, axis(0), 5, day)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "réunion avec Paul", hits[0].Content)
	})

	t.Run("empty range", func(t *testing.T) {
		day := &models.DateRange{
			From: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		}
		hits, err := testDB.QuerySearchMemories(ctx, axis(0), 5, day)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("zero limit", func(t *testing.T) {
		hits, err := testDB.QuerySearchMemories(ctx, axis(0), 0, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSearchChunks(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	for i, content := range []string{"la chaudière se purge en hiver", "le wifi se trouve au salon"} {
		_, err := testDB.QueryCreateChunk(ctx, models.ChunkInput{
			Content:    content,
			Embedding:  axis(i),
			Source:     "maison.md",
			ChunkIndex: i,
		})
		require.NoError(t, err)
	}

	hits, err := testDB.QuerySearchChunks(ctx, axis(1), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "le wifi se trouve au salon", hits[0].Content)
	assert.Equal(t, "maison.md", hits[0].Source)
	assert.Equal(t, 1, hits[0].ChunkIndex)

	snap := testMetrics.Snapshot()
	assert.NotNil(t, snap.Operations[metrics.OpDBSearch])
	assert.NotNil(t, snap.Operations[metrics.OpDBWrite])
}

func TestInitSchemaInvalidDimension(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	err := testDB.InitSchema(context.Background(), 0)
	assert.ErrorContains(t, err, "invalid embedding dimension")
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	assert.NoError(t, testDB.Ping(context.Background()))
}

func TestConfigAuth(t *testing.T) {
	root := Config{Username: "root", Password: "pw", Namespace: "ns", Database: "db", AuthLevel: "root"}
	a := root.auth()
	assert.Equal(t, "root", a.Username)
	assert.Empty(t, a.Namespace)

	scoped := root
	scoped.AuthLevel = "database"
	a = scoped.auth()
	assert.Equal(t, "ns", a.Namespace)
	assert.Equal(t, "db", a.Database)
}
