// Package main provides the HTTP server for Jarvis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/config"
	"github.com/raphaelgruber/jarvis/internal/db"
	"github.com/raphaelgruber/jarvis/internal/events"
	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/llm"
	"github.com/raphaelgruber/jarvis/internal/memory"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/rag"
	"github.com/raphaelgruber/jarvis/internal/router"
	"github.com/raphaelgruber/jarvis/internal/server"
	"github.com/raphaelgruber/jarvis/internal/session"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog := config.SetupLogger(cfg)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	logger.Info("starting jarvis-server",
		"version", version,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"embed_model", cfg.EmbedModel,
		"surrealdb_url", cfg.SurrealDBURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector()
	if err := collector.WithPrometheus(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	bus := events.NewBus(cfg.EventBuffer, logger, collector)
	bus.Subscribe("", events.NewLogObserver(logger))

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dbClient, err := db.NewClient(initCtx, db.ConfigFrom(cfg), logger, collector)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if err := dbClient.InitSchema(initCtx, cfg.EmbedDimension); err != nil {
		return err
	}
	if *wipeDB || os.Getenv("JARVIS_WIPE_DB") == "true" {
		if err := dbClient.WipeData(initCtx); err != nil {
			return fmt.Errorf("wipe database: %w", err)
		}
	}

	model, err := llm.NewModel(initCtx, cfg, logger, collector)
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}
	embedder, err := llm.NewEmbedder(cfg, logger, collector)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	cancel()
	logger.Info("models ready",
		"small", model.ModelName(llm.ProfileSmall),
		"medium", model.ModelName(llm.ProfileMedium),
		"large", model.ModelName(llm.ProfileLarge),
		"embed_model", embedder.Model(),
		"embed_dimension", embedder.Dimension(),
	)

	memories := memory.NewService(embedder, dbClient, model,
		memory.WithPublisher(bus),
		memory.WithTopK(cfg.MemoryTopK),
		memory.WithLogger(logger),
	)
	documents := rag.NewService(embedder, dbClient, model,
		rag.WithTopK(cfg.RAGTopK),
		rag.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
		rag.WithLogger(logger),
	)

	sessions := session.NewStore(
		session.WithTTL(cfg.SessionTTL),
		session.WithMaxHistory(cfg.MaxHistory),
		session.WithLogger(logger),
	)
	svc := agent.NewService(
		intent.NewClassifier(model, logger, collector),
		router.New(memories, documents, model),
		sessions,
		agent.WithPublisher(bus),
		agent.WithMetrics(collector),
		agent.WithLogger(logger),
		agent.WithConfirmationTTL(cfg.ConfirmationTTL),
	)

	srv := server.New(svc, server.Options{
		Version:     version,
		CORSOrigins: cfg.CORSOrigins,
		RateRPS:     cfg.RateRPS,
		RateBurst:   cfg.RateBurst,
		Metrics:     collector,
		Gatherer:    registry,
		Ingester:    documents,
		Memories:    memories,
		Documents:   documents,
		Generator:   model,
		Counter:     dbClient,
		Pinger:      dbClient,
	}, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("HTTP API available", "url", fmt.Sprintf("http://localhost:%s/agent/process", cfg.Port))
		logger.Info("websocket endpoint available", "url", fmt.Sprintf("ws://localhost:%s/ws/agent", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
