package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/jarvis/internal/intent"
)

// Defaults for a new store.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxHistory = 20
)

// entry guards one session's state.
type entry struct {
	mu  sync.Mutex
	ctx Context
}

// Store owns every session Context. Sessions are created lazily and evicted
// lazily: each access sweeps sessions whose last message is older than the TTL.
//
// Lock order is store then entry. Callbacks passed to Update run under the
// entry lock only and must not call back into the store.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*entry
	ttl        time.Duration
	maxHistory int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the idle time after which a session is evicted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithMaxHistory sets the history bound.
func WithMaxHistory(n int) Option {
	return func(s *Store) { s.maxHistory = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for eviction messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:   make(map[string]*entry),
		ttl:        DefaultTTL,
		maxHistory: DefaultMaxHistory,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// sweep evicts idle sessions. Caller must hold s.mu.
func (s *Store) sweep() {
	now := s.now()
	for id, e := range s.sessions {
		e.mu.Lock()
		last := e.ctx.LastActivity()
		e.mu.Unlock()

		if !last.IsZero() && now.Sub(last) > s.ttl {
			delete(s.sessions, id)
			s.logger.Debug("session evicted", "session_id", id, "idle", now.Sub(last).Round(time.Second))
		}
	}
}

// acquire sweeps, then returns the locked entry for id, creating it if needed.
// The caller must unlock the entry.
func (s *Store) acquire(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{ctx: Context{SessionID: id}}
		s.sessions[id] = e
	}
	e.mu.Lock()
	return e
}

// Update runs fn with exclusive access to the session's context.
func (s *Store) Update(id string, fn func(*Context)) {
	e := s.acquire(id)
	defer e.mu.Unlock()
	fn(&e.ctx)
}

// GetOrCreate returns a copy of the session's context, creating an empty one if absent.
func (s *Store) GetOrCreate(id string) Context {
	e := s.acquire(id)
	defer e.mu.Unlock()
	return e.ctx.clone()
}

// Snapshot returns a copy of an existing session without creating one.
func (s *Store) Snapshot(id string) (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	e, ok := s.sessions[id]
	if !ok {
		return Context{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx.clone(), true
}

// AddMessage appends a timestamped message, keeping only the most recent messages.
func (s *Store) AddMessage(id string, role Role, content string, kind *intent.Type) {
	s.Update(id, func(c *Context) {
		s.Append(c, Message{Role: role, Content: content, Intent: kind})
	})
}

// Append adds msg to c under the history bound, stamping it if needed.
// It is meant for use inside Update.
func (s *Store) Append(c *Context, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	c.History = append(c.History, msg)
	if over := len(c.History) - s.maxHistory; over > 0 {
		c.History = append(c.History[:0:0], c.History[over:]...)
	}
}

// SetPendingConfirmation replaces any pending confirmation for the session.
func (s *Store) SetPendingConfirmation(id string, p PendingConfirmation) {
	s.Update(id, func(c *Context) {
		c.PendingConfirmation = &p
	})
}

// ClearPendingConfirmation removes the session's pending confirmation.
func (s *Store) ClearPendingConfirmation(id string) {
	s.Update(id, func(c *Context) {
		c.PendingConfirmation = nil
	})
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions after a sweep.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	return len(s.sessions)
}
