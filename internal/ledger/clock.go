package ledger

import "sync/atomic"

// Clock stamps ledger rows with strictly increasing sequence numbers.
// Wall-clock time is never used for ordering.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
