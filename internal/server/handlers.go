package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/jarvis/internal/agent"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// maxIngestBytes bounds ingested documents.
const maxIngestBytes = 16 << 20

const healthTimeout = 2 * time.Second

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// processBody distinguishes a missing text field from an empty one.
type processBody struct {
	SessionID string  `json:"sessionId"`
	Text      *string `json:"text"`
	Source    string  `json:"source"`
}

func (b processBody) request() (agent.ProcessRequest, error) {
	if b.Text == nil {
		return agent.ProcessRequest{}, agent.ErrMissingText
	}
	return agent.ProcessRequest{SessionID: b.SessionID, Text: *b.Text, Source: b.Source}, nil
}

func decode(r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	return dec.Decode(v)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var body processBody
	if err := decode(r, maxBodyBytes, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := body.request()
	if err != nil {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := s.agent.Process(r.Context(), req)
	if err != nil {
		status, msg := s.processError(err)
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// processError maps a Process failure to a status and a user-facing message.
// Capability causes are logged and never returned to the client.
func (s *Server) processError(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrInvalidSource):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, agent.ErrMissingText):
		return http.StatusBadRequest, "text is required"
	case errors.Is(err, agent.ErrCapability):
		s.logger.Error("capability failed", "error", err)
		return http.StatusBadGateway, agent.ApologyMessage
	default:
		s.logger.Error("process failed", "error", err)
		return http.StatusInternalServerError, agent.ApologyMessage
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text *string `json:"text"`
	}
	if err := decode(r, maxBodyBytes, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Text == nil {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}
	JSON(w, http.StatusOK, s.agent.Classify(r.Context(), *body.Text))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := s.agent.Session(id)
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, c)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source string `json:"source"`
		Text   string `json:"text"`
	}
	if err := decode(r, maxIngestBytes, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Source) == "" {
		Error(w, http.StatusBadRequest, "source is required")
		return
	}

	res, err := s.opts.Ingester.Ingest(r.Context(), body.Source, body.Text)
	if err != nil {
		s.logger.Error("ingest failed", "source", body.Source, "error", err)
		Error(w, http.StatusBadGateway, agent.ApologyMessage)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Metrics.Snapshot()
	if s.opts.Counter != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statsCountTimeout)
		defer cancel()
		n, err := s.opts.Counter.QueryCountMemories(ctx)
		if err != nil {
			s.logger.Warn("count memories failed", "error", err)
		} else {
			snap.StoredMemories = &n
		}
	}
	JSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.opts.Pinger.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "version": s.opts.Version})
			return
		}
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.opts.Version})
}
