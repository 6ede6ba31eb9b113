package repository

import (
	"sync/atomic"
	"time"
)

// monotonicClock hands out strictly increasing millisecond timestamps.
// It follows the wall clock and bumps by one when two calls land on the same
// millisecond or the wall clock steps backwards.
type monotonicClock struct {
	now  func() time.Time
	last atomic.Int64
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	return &monotonicClock{now: now}
}

// Next returns a timestamp greater than every previous one
func (c *monotonicClock) Next() int64 {
	for {
		last := c.last.Load()
		ts := c.now().UnixMilli()
		if ts <= last {
			ts = last + 1
		}
		if c.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}

// Observe advances the clock past ts so later values stay above it
func (c *monotonicClock) Observe(ts int64) {
	for {
		last := c.last.Load()
		if ts <= last || c.last.CompareAndSwap(last, ts) {
			return
		}
	}
}
