package engine

import "sync/atomic"

// Clock hands out journal sequence numbers. Each settled operation takes the
// next value, so journal order is settlement order whatever the wall clock
// says.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock whose first Next is last+1. Pass the journal's
// LastSeq to continue an existing journal.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.seq.Store(last)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or the start value.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
