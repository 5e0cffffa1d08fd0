package clock

import (
	"container/heap"
	"sync"
	"time"
)

// VirtualClock is a manually driven clock for slice-waiting tests. Time only
// moves on Advance, Set or Step, so a waiter polling through After stays
// parked until the test lets it go.
//
// Safe for concurrent use.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
	timers  timerQueue
	seq     uint64
}

// timer is one pending After call.
type timer struct {
	deadline time.Time
	seq      uint64
	ch       chan time.Time
}

// timerQueue orders timers by deadline, then by creation.
type timerQueue []timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) { *q = append(*q, x.(timer)) }

func (q *timerQueue) Pop() any {
	old := *q
	t := old[len(old)-1]
	*q = old[:len(old)-1]
	return t
}

// NewVirtualClock creates a VirtualClock reading start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{current: start}
}

// Now returns the virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the virtual time elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// After returns a channel that receives the virtual time once the clock
// reaches now+d. A non-positive d fires at once.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.seq++
	heap.Push(&c.timers, timer{deadline: c.current.Add(d), seq: c.seq, ch: ch})
	return ch
}

// Advance moves the clock forward by d and fires every timer it passes.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	c.fireDue()
}

// Set moves the clock to t and fires every timer it passes.
// Panics if t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Before(c.current) {
		panic("clock: cannot set time to the past")
	}

	c.current = t
	c.fireDue()
}

// Step jumps to the earliest pending deadline and fires the timers due
// then. It reports false, leaving the clock alone, when nothing is pending.
func (c *VirtualClock) Step() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		return false
	}
	if next := c.timers[0].deadline; next.After(c.current) {
		c.current = next
	}
	c.fireDue()
	return true
}

// Pending returns the number of After channels that have not fired yet.
// Tests use it to know a poller is parked before advancing.
func (c *VirtualClock) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.timers)
}

// fireDue fires timers in deadline order up to the current time.
// c.mu must be held.
func (c *VirtualClock) fireDue() {
	for len(c.timers) > 0 && !c.timers[0].deadline.After(c.current) {
		t := heap.Pop(&c.timers).(timer)
		t.ch <- c.current
	}
}
