package observers

import (
	"context"
	"fmt"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"

	"github.com/digital-twin-core/server/internal/agent/trace"
)

type startTimeKey struct{}
type inputSummaryKey struct{}

// NewPipelineCallbacks builds a graph-wide callbacks handler that emits one
// trace event per node transition: stage name, input/output summaries and
// latency. Emission goes through the Recorder and can never fail the run.
func NewPipelineCallbacks(rec trace.Recorder, requestID, userID string, summaryLen int) einocb.Handler {
	emit := func(ctx context.Context, info *einocb.RunInfo, output, errStr string) {
		if info == nil {
			return
		}
		ev := trace.Event{
			RequestID: requestID,
			UserID:    userID,
			Stage:     info.Name,
			Component: string(info.Component),
			Output:    output,
			Error:     errStr,
			At:        time.Now().UTC(),
		}
		if started, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
			ev.LatencyMS = time.Since(started).Milliseconds()
		}
		if in, ok := ctx.Value(inputSummaryKey{}).(string); ok {
			ev.Input = in
		}
		rec.Record(ctx, ev)
	}

	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, input einocb.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			return context.WithValue(ctx, inputSummaryKey{}, summarizeAny(input, summaryLen))
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, output einocb.CallbackOutput) context.Context {
			emit(ctx, info, summarizeAny(output, summaryLen), "")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			emit(ctx, info, "", err.Error())
			return ctx
		}).
		Build()
}

func summarizeAny(v any, max int) string {
	if v == nil {
		return ""
	}
	return trace.Summarize(fmt.Sprintf("%+v", v), max)
}
