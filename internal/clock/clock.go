package clock

import "time"

// Clock abstracts time for the slice waiter and replay timing.
// Production code uses RealClock; tests drive a VirtualClock so polling
// happens without real sleeps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
	// After returns a channel that receives the current time after duration d.
	After(d time.Duration) <-chan time.Time
}

// RealClock reads the wall clock. Replays use it unless a test injects a
// VirtualClock.
type RealClock struct{}

// NewRealClock returns the wall clock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
