package logger

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const replayIDKey = ctxKey("replay-id")

// WithReplayID returns a context carrying a replay id. An empty id is
// replaced by a new uuid.
func WithReplayID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, replayIDKey, id)
}

// ReplayID returns the replay id stored in ctx, or "".
func ReplayID(ctx context.Context) string {
	id, _ := ctx.Value(replayIDKey).(string)
	return id
}
