// Package server exposes the agent over HTTP and websocket.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/rag"
	"github.com/raphaelgruber/jarvis/internal/session"
)

// Agent is the dialogue core served by the HTTP API.
type Agent interface {
	Process(ctx context.Context, req agent.ProcessRequest) (*agent.ProcessResponse, error)
	Classify(ctx context.Context, text string) intent.Result
	Session(id string) (session.Context, bool)
}

// Ingester indexes documents for retrieval.
type Ingester interface {
	Ingest(ctx context.Context, source, text string) (rag.IngestResult, error)
}

// Options configures the HTTP surface.
type Options struct {
	Version     string
	CORSOrigins []string
	RateRPS     float64
	RateBurst   int

	// Metrics backs /stats; Gatherer backs /metrics. Either may be nil.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// Ingester enables POST /rag/ingest when set.
	Ingester Ingester

	// Each capability enables its routes when set: /memory/add|search|query,
	// /rag/ask[/stream] and /llm/ask[/stream].
	Memories  Memories
	Documents Documents
	Generator Generator

	// Counter adds the stored memory count to /stats.
	Counter MemoryCounter

	// Pinger, when set, makes /health report 503 while the store is unreachable.
	Pinger Pinger
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	agent    Agent
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router.
func New(a Agent, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		agent:  a,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return originAllowed(opts.CORSOrigins, r) },
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.opts.CORSOrigins))

	limiter := NewRateLimiter(s.opts.RateRPS, s.opts.RateBurst)

	r.Route("/agent", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/process", s.handleProcess)
		r.Post("/classify", s.handleClassify)
		r.Get("/sessions/{id}", s.handleSession)
	})

	if s.opts.Memories != nil {
		r.Route("/memory", func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/add", s.handleMemoryAdd)
			r.Post("/search", s.handleMemorySearch)
			r.Post("/query", s.handleMemoryQuery)
		})
	}

	if s.opts.Ingester != nil || s.opts.Documents != nil {
		r.Route("/rag", func(r chi.Router) {
			r.Use(limiter.Middleware)
			if s.opts.Ingester != nil {
				r.Post("/ingest", s.handleIngest)
			}
			if s.opts.Documents != nil {
				r.Post("/ask", s.handleRAGAsk)
				r.Post("/ask/stream", s.handleRAGAskStream)
			}
		})
	}

	if s.opts.Generator != nil {
		r.Route("/llm", func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/ask", s.handleLLMAsk)
			r.Post("/ask/stream", s.handleLLMAskStream)
		})
	}

	r.Get("/ws/agent", s.handleWebsocket)
	r.Get("/stats", s.handleStats)
	r.Get("/health", s.handleHealth)

	gatherer := s.opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
