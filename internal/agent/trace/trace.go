package trace

import (
	"context"
	"time"

	logx "github.com/digital-twin-core/server/pkg/logger"
)

// Event is one structured trace record emitted after a pipeline stage
// transition. Input/Output carry truncated summaries, never full payloads.
type Event struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id,omitempty"`
	Stage     string    `json:"stage"`
	Component string    `json:"component,omitempty"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	At        time.Time `json:"at"`
}

// Recorder receives trace events. Implementations must be fire-and-forget:
// they never block the pipeline and never return an error to it.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// LogRecorder writes trace events to the structured log.
type LogRecorder struct{}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) {
	evt := logx.Debug().
		Str("request_id", ev.RequestID).
		Str("stage", ev.Stage).
		Int64("latency_ms", ev.LatencyMS)
	if ev.UserID != "" {
		evt = evt.Str("user_id", ev.UserID)
	}
	if ev.Output != "" {
		evt = evt.Str("output", ev.Output)
	}
	if ev.Error != "" {
		evt = evt.Str("error", ev.Error)
	}
	evt.Msg("stage transition")
}

// MultiRecorder fans an event out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Record(ctx, ev)
	}
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}

var (
	_ Recorder = (*LogRecorder)(nil)
	_ Recorder = (MultiRecorder)(nil)
	_ Recorder = NopRecorder{}
)

// Summarize truncates a payload to a trace-friendly single-line summary.
func Summarize(s string, max int) string {
	if max <= 0 {
		max = 200
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
