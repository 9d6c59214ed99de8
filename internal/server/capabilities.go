package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/models"
	"github.com/raphaelgruber/jarvis/internal/router"
)

// Memories serves the /memory routes.
type Memories interface {
	Add(ctx context.Context, text string) (router.AddResult, error)
	Search(ctx context.Context, query string, limit int) ([]models.MemoryHit, error)
	Query(ctx context.Context, question string) (router.Answer, error)
}

// Documents serves /rag/ask and /rag/ask/stream.
type Documents interface {
	Ask(ctx context.Context, question string) (router.Answer, error)
	AskStream(ctx context.Context, question string, onSources func([]string) error, onToken func(token string) error) (router.Answer, error)
}

// Generator serves the raw /llm routes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, onToken func(token string) error) (string, error)
}

// MemoryCounter reports how many memories are stored.
type MemoryCounter interface {
	QueryCountMemories(ctx context.Context) (int, error)
}

// streamFailed is the SSE error payload; provider details stay in the logs.
const streamFailed = "Generation failed"

const statsCountTimeout = 2 * time.Second

// answerResponse is the JSON shape of a grounded answer.
type answerResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

type addResponse struct {
	Stored     bool       `json:"stored"`
	EventDate  *time.Time `json:"eventDate,omitempty"`
	Expression string     `json:"expression,omitempty"`
}

// requireText decodes body and checks that the named field is not blank.
func requireText(w http.ResponseWriter, r *http.Request, body any, field string, value func() string) bool {
	if err := decode(r, maxBodyBytes, body); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if strings.TrimSpace(value()) == "" {
		Error(w, http.StatusBadRequest, field+" is required")
		return false
	}
	return true
}

func (s *Server) capabilityError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("capability failed", "op", op, "error", err)
	Error(w, http.StatusBadGateway, agent.ApologyMessage)
}

func (s *Server) handleMemoryAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !requireText(w, r, &body, "text", func() string { return body.Text }) {
		return
	}
	res, err := s.opts.Memories.Add(r.Context(), body.Text)
	if err != nil {
		s.capabilityError(w, "memory.add", err)
		return
	}
	JSON(w, http.StatusOK, addResponse{Stored: true, EventDate: res.EventDate, Expression: res.Expression})
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
		TopK  int    `json:"topK"`
	}
	if !requireText(w, r, &body, "query", func() string { return body.Query }) {
		return
	}
	if body.TopK < 0 {
		Error(w, http.StatusBadRequest, "topK must be positive")
		return
	}
	hits, err := s.opts.Memories.Search(r.Context(), body.Query, body.TopK)
	if err != nil {
		s.capabilityError(w, "memory.search", err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleMemoryQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if !requireText(w, r, &body, "query", func() string { return body.Query }) {
		return
	}
	ans, err := s.opts.Memories.Query(r.Context(), body.Query)
	if err != nil {
		s.capabilityError(w, "memory.query", err)
		return
	}
	JSON(w, http.StatusOK, answerResponse{Answer: ans.Text, Sources: ans.Sources})
}

type questionBody struct {
	Question string `json:"question"`
}

func (s *Server) handleRAGAsk(w http.ResponseWriter, r *http.Request) {
	var body questionBody
	if !requireText(w, r, &body, "question", func() string { return body.Question }) {
		return
	}
	ans, err := s.opts.Documents.Ask(r.Context(), body.Question)
	if err != nil {
		s.capabilityError(w, "rag.ask", err)
		return
	}
	JSON(w, http.StatusOK, answerResponse{Answer: ans.Text, Sources: ans.Sources})
}

func (s *Server) handleRAGAskStream(w http.ResponseWriter, r *http.Request) {
	var body questionBody
	if !requireText(w, r, &body, "question", func() string { return body.Question }) {
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		return
	}

	_, err := s.opts.Documents.AskStream(r.Context(), body.Question,
		func(sources []string) error {
			return stream.send("metadata", map[string]any{"sources": sources})
		},
		func(token string) error {
			return stream.send("", map[string]string{"token": token})
		})
	s.finishStream(r.Context(), stream, "rag.ask.stream", err)
}

type promptBody struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleLLMAsk(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	if !requireText(w, r, &body, "prompt", func() string { return body.Prompt }) {
		return
	}
	answer, err := s.opts.Generator.Generate(r.Context(), body.Prompt)
	if err != nil {
		s.capabilityError(w, "llm.ask", err)
		return
	}
	JSON(w, http.StatusOK, answerResponse{Answer: answer})
}

func (s *Server) handleLLMAskStream(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	if !requireText(w, r, &body, "prompt", func() string { return body.Prompt }) {
		return
	}
	stream, ok := newEventStream(w)
	if !ok {
		return
	}

	_, err := s.opts.Generator.GenerateStream(r.Context(), body.Prompt, func(token string) error {
		return stream.send("", map[string]string{"token": token})
	})
	s.finishStream(r.Context(), stream, "llm.ask.stream", err)
}

// finishStream ends a stream with a done or error event. A client that went
// away gets nothing more.
func (s *Server) finishStream(ctx context.Context, stream *eventStream, op string, err error) {
	switch {
	case ctx.Err() != nil:
		s.logger.Debug("stream cancelled by client", "op", op)
	case err != nil:
		s.logger.Error("stream failed", "op", op, "error", err)
		_ = stream.send("", map[string]string{"error": streamFailed})
	default:
		_ = stream.send("", map[string]bool{"done": true})
	}
}

// eventStream writes server-sent events.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, true
}

// send writes one event; an empty name sends an unnamed data event.
func (e *eventStream) send(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if name != "" {
		if _, err := fmt.Fprintf(e.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
