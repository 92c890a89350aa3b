package engine

import "sync/atomic"

// Clock is the simulated frame clock used for throttling.
//
// It carries a frame counter and the simulated time in milliseconds. Both
// only move forward, and only through Advance; wall-clock time never feeds
// into pair scheduling, so replays see the same recheck decisions.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, only the goroutine driving frames typically calls Advance.
type Clock struct {
	frame atomic.Int64
	ms    atomic.Int64
}

// NewClock creates a clock at frame 0, time 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock at a specific frame and time.
// Used for replay to resume from a known position.
func NewClockAt(frame, ms int64) *Clock {
	c := &Clock{}
	c.frame.Store(frame)
	c.ms.Store(ms)
	return c
}

// Advance starts the next frame, dtMs milliseconds after the previous one,
// and returns the new frame number. Negative dt is treated as zero.
func (c *Clock) Advance(dtMs int64) int64 {
	if dtMs > 0 {
		c.ms.Add(dtMs)
	}
	return c.frame.Add(1)
}

// Frame returns the current frame number.
func (c *Clock) Frame() int64 {
	return c.frame.Load()
}

// Now returns the current simulated time in milliseconds.
func (c *Clock) Now() int64 {
	return c.ms.Load()
}
