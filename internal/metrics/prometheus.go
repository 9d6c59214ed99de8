package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// promMirror forwards collector observations to Prometheus.
type promMirror struct {
	opDuration    *prometheus.HistogramVec
	intentsTotal  *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

// WithPrometheus registers Prometheus metrics on reg and mirrors every
// subsequent observation to them.
func (c *Collector) WithPrometheus(reg prometheus.Registerer) error {
	m := &promMirror{
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jarvis_operation_duration_seconds",
				Help:    "Duration of internal operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		intentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jarvis_intents_total",
				Help: "Total number of classified utterances",
			},
			[]string{"intent", "path"},
		),
		eventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jarvis_events_dropped_total",
				Help: "Total number of events dropped because the bus was full",
			},
		),
	}

	for _, col := range []prometheus.Collector{m.opDuration, m.intentsTotal, m.eventsDropped} {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register prometheus collector: %w", err)
		}
	}

	c.mu.Lock()
	c.prom = m
	c.mu.Unlock()
	return nil
}

func (m *promMirror) observe(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *promMirror) intent(kind, path string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(kind, path).Inc()
}

func (m *promMirror) dropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
