package slice

import (
	"context"
	"os"
	"time"

	"github.com/SmitUplenchwar2687/tickreplay/internal/clock"
	"github.com/SmitUplenchwar2687/tickreplay/internal/errs"
)

// DefaultPollInterval is how often a missing slice is checked for.
const DefaultPollInterval = 300 * time.Millisecond

// Notifier delivers out-of-band announcements that a slice was written.
// Notify returns a channel that is closed once path is announced, and a
// function that releases the registration.
type Notifier interface {
	Notify(ctx context.Context, path string) (<-chan struct{}, func())
}

// Waiter blocks until slice files appear on disk. It never reads or
// modifies the files. A Waiter has no per-call state and may be shared.
type Waiter struct {
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	notifier Notifier
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithClock sets the clock used for polling and timeouts.
func WithClock(c clock.Clock) WaiterOption {
	return func(w *Waiter) { w.clock = c }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithTimeout bounds each wait. Zero waits forever.
func WithTimeout(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.timeout = d }
}

// WithNotifier lets announcements cut a poll interval short.
func WithNotifier(n Notifier) WaiterOption {
	return func(w *Waiter) { w.notifier = n }
}

// NewWaiter creates a Waiter polling every DefaultPollInterval on the real
// clock with no timeout.
func NewWaiter(opts ...WaiterOption) *Waiter {
	w := &Waiter{
		clock:    clock.NewRealClock(),
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait returns path once it names a regular file. It returns ctx.Err() when
// ctx ends first, and a slice_unavailable error when the timeout elapses.
func (w *Waiter) Wait(ctx context.Context, path string) (string, error) {
	var ready <-chan struct{}
	if w.notifier != nil {
		ch, release := w.notifier.Notify(ctx, path)
		defer release()
		ready = ch
	}

	start := w.clock.Now()
	for {
		if Exists(path) {
			return path, nil
		}
		if w.timeout > 0 && w.clock.Since(start) >= w.timeout {
			return "", errs.SliceUnavailable(path, context.DeadlineExceeded)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-w.clock.After(w.interval):
		case <-ready:
			// Re-check now; fall back to polling if the file is still missing.
			ready = nil
		}
	}
}

// Exists reports whether path is a regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
