// Package notify announces that a cache slice has been written, so replays
// waiting on that slice wake up without waiting for their next poll.
//
// Announcements are hints. A waiter always re-checks the filesystem, and a
// lost announcement only costs one poll interval.
package notify

import (
	"context"
	"path/filepath"
	"sync"
)

// Publisher announces finished slices.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

type watcher struct {
	ch   chan struct{}
	once sync.Once
}

func (w *watcher) fire() {
	w.once.Do(func() { close(w.ch) })
}

// Hub matches announcements to the waiters registered for a path. It is the
// in-process notifier and the fan-out behind Redis.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[*watcher]struct{})}
}

// Notify registers interest in path. The returned channel is closed when
// path is announced; release must be called once the caller stops waiting.
func (h *Hub) Notify(_ context.Context, path string) (<-chan struct{}, func()) {
	key := pathKey(path)
	w := &watcher{ch: make(chan struct{})}

	h.mu.Lock()
	set, ok := h.watchers[key]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[key] = set
	}
	set[w] = struct{}{}
	h.mu.Unlock()

	release := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.watchers[key]; ok {
			delete(set, w)
			if len(set) == 0 {
				delete(h.watchers, key)
			}
		}
	}
	return w.ch, release
}

// Announce wakes every waiter registered for path and returns how many
// there were.
func (h *Hub) Announce(path string) int {
	key := pathKey(path)

	h.mu.Lock()
	set := h.watchers[key]
	delete(h.watchers, key)
	h.mu.Unlock()

	for w := range set {
		w.fire()
	}
	return len(set)
}

// Publish announces path in-process.
func (h *Hub) Publish(_ context.Context, path string) error {
	h.Announce(path)
	return nil
}

// Watching returns the number of registered waiters.
func (h *Hub) Watching() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}

// pathKey makes relative and absolute spellings of a path compare equal.
func pathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
