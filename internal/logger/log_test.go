package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
)

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return New(zap.New(core)), logs
}

func TestLogger_DebugContextAddsReplayID(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)
	ctx := WithReplayID(context.Background(), "r-1")

	l.DebugContext(ctx, "getting slice", NewField("path", "/c/a.json.gz"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "getting slice", entry.Message)
	assert.Equal(t, "r-1", entry.ContextMap()["replay_id"])
	assert.Equal(t, "/c/a.json.gz", entry.ContextMap()["path"])
}

func TestLogger_ErrorAddsCode(t *testing.T) {
	l, logs := newObserved(zapcore.InfoLevel)

	l.Error(errs.CorruptSlice("/c/a.json.gz", errors.New("unexpected EOF")))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, string(errs.CodeCorruptSlice), logs.All()[0].ContextMap()["code"])
}

func TestLogger_ErrorUsesWrappedStack(t *testing.T) {
	l, logs := newObserved(zapcore.InfoLevel)

	err := fmt.Errorf("waiting for slice 2019-06-01T00:00:00Z: %w",
		errs.SliceUnavailable("/c/a.json.gz", context.DeadlineExceeded))
	l.Error(err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, string(errs.CodeSliceUnavailable), entry.ContextMap()["code"])
	assert.NotEmpty(t, entry.Stack, "stack of the wrapped error")
}

func TestLogger_With(t *testing.T) {
	l, logs := newObserved(zapcore.InfoLevel)

	l.With(NewField("exchange", "bitmex")).Info("replay finished")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bitmex", logs.All()[0].ContextMap()["exchange"])
}

func TestWithReplayID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithReplayID(context.Background(), "")
	assert.Len(t, ReplayID(ctx), 36)
	assert.Equal(t, "", ReplayID(context.Background()))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("dropped")
	l.Error(errors.New("dropped"))
	assert.NotNil(t, l.Zap())
}
