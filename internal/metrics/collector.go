// Package metrics counts operation timings, token usage and classified intents for /stats and Prometheus.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics accumulates raw counters for one operation name.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Only LLM operations report tokens.
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot is the JSON view of one operation: averages and extremes in milliseconds.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors,omitempty"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`

	// Nil for operations that never reported tokens.
	TotalInputTokens  *int64   `json:"totalInputTokens,omitempty"`
	TotalOutputTokens *int64   `json:"totalOutputTokens,omitempty"`
	AvgInputTokens    *float64 `json:"avgInputTokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avgOutputTokens,omitempty"`
}

// Snapshot is the payload served on /stats.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptimeSeconds"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
	Intents       map[string]int64              `json:"intents"`
	Fallbacks     int64                         `json:"fallbacks"`
	EventsDropped int64                         `json:"eventsDropped"`

	// StoredMemories is filled in by the server when a store is wired.
	StoredMemories *int `json:"storedMemories,omitempty"`
}

// Operation names.
const (
	OpClassifyLLM      = "classify_llm"
	OpClassifyFallback = "classify_fallback"
	OpLLMGenerate      = "llm_generate"
	OpLLMStream        = "llm_stream"
	OpEmbedding        = "embedding"
	OpDBSearch         = "db_search"
	OpDBWrite          = "db_write"
	OpProcess          = "process"
)

// Classification paths recorded with RecordIntent.
const (
	PathLLM      = "llm"
	PathFallback = "fallback"
)

// Collector keeps per-operation and per-intent counters in memory.
// All methods are thread-safe and safe to call on a nil receiver.
type Collector struct {
	mu            sync.RWMutex
	startTime     time.Time
	ops           map[string]*OperationMetrics
	intents       map[string]int64
	fallbacks     int64
	eventsDropped int64
	prom          *promMirror
}

// NewCollector starts the uptime clock.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		intents:   make(map[string]int64),
	}
}

// getOrCreate returns the counters for op, allocating them on first use.
// c.mu must be held for writing.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming adds one successful call of op.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.getOrCreate(op).observe(duration)
	p := c.prom
	c.mu.Unlock()

	p.observe(op, duration)
}

// RecordError counts a failed operation.
func (c *Collector) RecordError(op string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.getOrCreate(op).Errors++
	c.mu.Unlock()
}

// RecordLLMUsage is RecordTiming plus the prompt and completion token counts.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	m := c.getOrCreate(op)
	m.observe(duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
	p := c.prom
	c.mu.Unlock()

	p.observe(op, duration)
}

// RecordIntent counts a classification outcome by intent kind and path.
func (c *Collector) RecordIntent(kind, path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.intents[kind]++
	if path == PathFallback {
		c.fallbacks++
	}
	p := c.prom
	c.mu.Unlock()

	p.intent(kind, path)
}

// RecordEventDropped counts an event the bus could not enqueue.
func (c *Collector) RecordEventDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDropped++
	p := c.prom
	c.mu.Unlock()

	p.dropped()
}

// snapshotOp derives averages for op; nil when op has no calls.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || (m.Count == 0 && m.Errors == 0) {
		return nil
	}

	snap := &OperationSnapshot{
		Count:  m.Count,
		Errors: m.Errors,
	}
	if m.Count == 0 {
		return snap
	}
	snap.TotalTimeMs = m.TotalTime.Milliseconds()
	snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
	snap.MinTimeMs = m.MinTime.Milliseconds()
	snap.MaxTimeMs = m.MaxTime.Milliseconds()

	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		totalIn := m.TotalInputTokens
		totalOut := m.TotalOutputTokens
		avgIn := float64(totalIn) / float64(m.Count)
		avgOut := float64(totalOut) / float64(m.Count)
		snap.TotalInputTokens = &totalIn
		snap.TotalOutputTokens = &totalOut
		snap.AvgInputTokens = &avgIn
		snap.AvgOutputTokens = &avgOut
	}

	return snap
}

// Snapshot copies every counter under the read lock.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]*OperationSnapshot, len(c.ops))
	for name, m := range c.ops {
		if s := snapshotOp(m); s != nil {
			ops[name] = s
		}
	}
	intents := make(map[string]int64, len(c.intents))
	for k, v := range c.intents {
		intents[k] = v
	}

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    ops,
		Intents:       intents,
		Fallbacks:     c.fallbacks,
		EventsDropped: c.eventsDropped,
	}
}
