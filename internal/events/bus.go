// Package events delivers best-effort notifications to observers.
//
// Publishing never blocks: when the queue is full the event is dropped.
// Delivery is at most once and observers may be absent entirely.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event names.
const (
	IntentClassified = "intent.classified"
	MemoryAdded      = "memory.added"
	MemoryQueried    = "memory.queried"
	MemorySearched   = "memory.searched"
)

// DefaultBuffer is the queue depth used when none is configured.
const DefaultBuffer = 64

// Event is a named notification with an arbitrary payload.
type Event struct {
	Name    string
	At      time.Time
	Payload any
}

// IntentClassifiedPayload is published for every processed utterance.
type IntentClassifiedPayload struct {
	SessionID  string  `json:"sessionId"`
	Text       string  `json:"text"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

// MemoryAddedPayload is published after a memory is stored.
type MemoryAddedPayload struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	EventDate  *time.Time `json:"eventDate,omitempty"`
	Expression string     `json:"expression,omitempty"`
}

// MemoryQueriedPayload is published after a memory question is answered.
type MemoryQueriedPayload struct {
	Question    string `json:"question"`
	SourceCount int    `json:"sourceCount"`
	DateFilter  bool   `json:"dateFilter"`
}

// MemorySearchedPayload is published after a raw memory search.
type MemorySearchedPayload struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
}

// Observer receives events.
type Observer interface {
	Observe(ctx context.Context, ev Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) error { return f(ctx, ev) }

// DropCounter is notified of dropped events.
type DropCounter interface {
	RecordEventDropped()
}

// Publisher is the sending side of the bus.
type Publisher interface {
	Publish(name string, payload any)
}

// Bus is a bounded, non-blocking event queue.
type Bus struct {
	queue     chan Event
	mu        sync.RWMutex
	observers map[string][]Observer
	all       []Observer
	drops     DropCounter
	logger    *slog.Logger
	now       func() time.Time
}

// NewBus creates a bus holding at most buffer undelivered events.
func NewBus(buffer int, logger *slog.Logger, drops DropCounter) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		queue:     make(chan Event, buffer),
		observers: make(map[string][]Observer),
		drops:     drops,
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe registers o for events with the given name. An empty name
// subscribes to every event.
func (b *Bus) Subscribe(name string, o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		b.all = append(b.all, o)
		return
	}
	b.observers[name] = append(b.observers[name], o)
}

// Publish enqueues an event without blocking. It is safe on a nil bus.
func (b *Bus) Publish(name string, payload any) {
	if b == nil {
		return
	}
	ev := Event{Name: name, At: b.now(), Payload: payload}
	select {
	case b.queue <- ev:
	default:
		b.logger.Warn("event dropped, queue full", "event", name)
		if b.drops != nil {
			b.drops.RecordEventDropped()
		}
	}
}

// Run dispatches queued events until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	targets := make([]Observer, 0, len(b.all)+len(b.observers[ev.Name]))
	targets = append(targets, b.observers[ev.Name]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, o := range targets {
		if err := b.deliver(ctx, o, ev); err != nil {
			b.logger.Warn("observer failed", "event", ev.Name, "error", err)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, o Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.Observe(ctx, ev)
}
