package events

import (
	"context"
	"log/slog"
)

// LogObserver writes every event it receives to a logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// Observe logs the event at a level matching its importance.
func (l *LogObserver) Observe(ctx context.Context, ev Event) error {
	switch p := ev.Payload.(type) {
	case IntentClassifiedPayload:
		l.logger.DebugContext(ctx, "intent classified",
			"session_id", p.SessionID, "intent", p.Intent, "confidence", p.Confidence, "source", p.Source)
	case MemoryAddedPayload:
		attrs := []any{"id", p.ID, "text_len", len(p.Text)}
		if p.EventDate != nil {
			attrs = append(attrs, "event_date", p.EventDate.Format("2006-01-02T15:04"), "expression", p.Expression)
		}
		l.logger.InfoContext(ctx, "memory added", attrs...)
	case MemoryQueriedPayload:
		l.logger.InfoContext(ctx, "memory queried",
			"question_len", len(p.Question), "sources", p.SourceCount, "date_filter", p.DateFilter)
	case MemorySearchedPayload:
		l.logger.DebugContext(ctx, "memory searched", "query_len", len(p.Query), "results", p.Results)
	default:
		l.logger.DebugContext(ctx, "event", "name", ev.Name)
	}
	return nil
}
