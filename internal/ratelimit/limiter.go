// Package ratelimit implements fixed-window admission control keyed by client
// identity (usually the remote IP).
//
// Every identity owns a counter that resets when the wall clock crosses a
// window boundary (windows are aligned to the epoch). A request is admitted
// while the counter is below the ceiling. The policy is approximate: a client
// can burst up to twice the ceiling across a boundary.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check
type Decision struct {
	Allowed     bool
	Count       int
	Limit       int
	WindowStart time.Time
	// RetryAfter is the time left until the window rolls over
	RetryAfter time.Duration
}

// Limiter decides whether an identity may make another request now
type Limiter interface {
	Allow(ctx context.Context, identity string) (Decision, error)
	Close() error
}

// windowFor returns the window containing now and the time left in it
func windowFor(now time.Time, window time.Duration) (time.Time, time.Duration) {
	start := now.Truncate(window)
	return start, start.Add(window).Sub(now)
}
