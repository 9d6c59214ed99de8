package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/jarvis/internal/events"
	"github.com/raphaelgruber/jarvis/internal/intent"
	"github.com/raphaelgruber/jarvis/internal/metrics"
	"github.com/raphaelgruber/jarvis/internal/router"
	"github.com/raphaelgruber/jarvis/internal/session"
)

// DefaultConfirmationTTL is how long a pending confirmation stays valid.
const DefaultConfirmationTTL = 5 * time.Minute

// Classifier produces intents.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Router dispatches content intents.
type Router interface {
	Route(ctx context.Context, res intent.Result, sc session.Context) (router.EngineResult, error)
}

// Service orchestrates one request end to end.
type Service struct {
	classifier Classifier
	router     Router
	store      *session.Store
	events     events.Publisher
	metrics    *metrics.Collector
	logger     *slog.Logger
	confirmTTL time.Duration
	newID      func() string
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event sink. Without one, events are discarded.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithConfirmationTTL sets the validity of new pending confirmations.
func WithConfirmationTTL(d time.Duration) Option {
	return func(s *Service) { s.confirmTTL = d }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

type discard struct{}

func (discard) Publish(string, any) {}

// NewService creates the orchestrator.
func NewService(c Classifier, r Router, store *session.Store, opts ...Option) *Service {
	s := &Service{
		classifier: c,
		router:     r,
		store:      store,
		events:     discard{},
		logger:     slog.Default(),
		confirmTTL: DefaultConfirmationTTL,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify runs classification only, without touching any session.
func (s *Service) Classify(ctx context.Context, text string) intent.Result {
	return s.classifier.Classify(ctx, text)
}

// Session returns a copy of a live session.
func (s *Service) Session(id string) (session.Context, bool) {
	return s.store.Snapshot(id)
}

// RequestConfirmation records an action that awaits the user's yes or no,
// replacing any previous one.
func (s *Service) RequestConfirmation(sessionID, action string, params map[string]string) {
	s.store.SetPendingConfirmation(sessionID, session.PendingConfirmation{
		Action:    action,
		Params:    params,
		ExpiresAt: s.store.Now().Add(s.confirmTTL),
	})
}

// Process handles one utterance.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	start := time.Now()

	src, err := ParseSource(req.Source)
	if err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = s.newID()
	}
	// The session is created by its first recorded turn, so a failed
	// request leaves nothing behind.
	text := req.Text

	res := s.classifier.Classify(ctx, strings.TrimSpace(text))
	s.events.Publish(events.IntentClassified, events.IntentClassifiedPayload{
		SessionID:  sessionID,
		Text:       text,
		Intent:     string(res.Primary),
		Confidence: res.Confidence,
		Source:     string(src),
	})

	var out router.EngineResult
	if res.Primary.IsMeta() {
		out = s.resolveMeta(sessionID, text, res)
	} else {
		sc, ok := s.store.Snapshot(sessionID)
		if !ok {
			sc = session.Context{SessionID: sessionID}
		}
		out, err = s.router.Route(ctx, res, sc)
		if err != nil {
			s.metrics.RecordError(metrics.OpProcess)
			s.logger.Error("capability failed",
				"session_id", sessionID, "intent", res.Primary, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrCapability, err)
		}
		s.store.Update(sessionID, func(c *session.Context) {
			s.recordTurns(c, text, res, out.Answer)
		})
	}

	s.metrics.RecordTiming(metrics.OpProcess, time.Since(start))
	s.logger.Info("processed",
		"session_id", sessionID,
		"source", src,
		"intent", res.Primary,
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds())

	return &ProcessResponse{
		SessionID:  sessionID,
		Intent:     res.Primary,
		Confidence: res.Confidence,
		Answer:     out.Answer,
		Sources:    wrapSources(out.Sources),
		Actions:    out.Actions,
	}, nil
}

// resolveMeta answers confirmation, rejection and correction against the
// session's pending state. Reading and clearing the pending confirmation and
// recording the exchange happen under one session lock.
func (s *Service) resolveMeta(sessionID, text string, res intent.Result) router.EngineResult {
	var out router.EngineResult

	s.store.Update(sessionID, func(c *session.Context) {
		pending := c.PendingConfirmation
		if pending != nil && pending.Expired(s.store.Now()) {
			s.logger.Info("pending confirmation expired",
				"session_id", sessionID, "action", pending.Action)
			c.PendingConfirmation = nil
			pending = nil
		}

		switch res.Primary {
		case intent.Confirmation:
			if pending == nil {
				out.Answer = AnswerNothingPending
				break
			}
			c.PendingConfirmation = nil
			out.Answer = AnswerConfirmed
			out.Actions = []router.Action{{
				Type:        pending.Action,
				Description: "Confirmed",
				Status:      router.ActionExecuted,
			}}

		case intent.Rejection:
			if pending == nil {
				out.Answer = AnswerNothingToCancel
				break
			}
			c.PendingConfirmation = nil
			out.Answer = AnswerCancelled
			out.Actions = []router.Action{{
				Type:        pending.Action,
				Description: "Rejected",
				Status:      router.ActionFailed,
			}}

		case intent.Correction:
			out.Answer = AnswerCorrectionNoticed
		}

		s.recordTurns(c, text, res, out.Answer)
	})

	return out
}

// recordTurns appends the user turn and the assistant answer.
func (s *Service) recordTurns(c *session.Context, text string, res intent.Result, answer string) {
	kind := res.Primary
	confidence := res.Confidence
	s.store.Append(c, session.Message{
		Role:       session.RoleUser,
		Content:    text,
		Intent:     &kind,
		Confidence: &confidence,
	})
	s.store.Append(c, session.Message{
		Role:    session.RoleAssistant,
		Content: answer,
	})
}
