package trace

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digital-twin-core/server/internal/agent/model"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

const recordTimeout = 2 * time.Second

// RedisRecorder appends trace events to a capped Redis stream. Emission is
// detached from the request: it runs on its own goroutine with its own
// deadline, and failures are logged and dropped.
type RedisRecorder struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisRecorder(rdb redis.Cmdable, cfg model.TraceConfig) *RedisRecorder {
	return &RedisRecorder{rdb: rdb, stream: cfg.Stream, maxLen: cfg.MaxLen}
}

func (r *RedisRecorder) Record(_ context.Context, ev Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		err := r.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			MaxLen: r.maxLen,
			Approx: true,
			Values: map[string]any{
				"request_id": ev.RequestID,
				"user_id":    ev.UserID,
				"stage":      ev.Stage,
				"component":  ev.Component,
				"input":      ev.Input,
				"output":     ev.Output,
				"error":      ev.Error,
				"latency_ms": ev.LatencyMS,
				"at":         ev.At.UTC().Format(time.RFC3339Nano),
			},
		}).Err()
		if err != nil {
			logx.Warn().Err(err).Str("stream", r.stream).Msg("Dropping trace event")
		}
	}()
}

var _ Recorder = (*RedisRecorder)(nil)
