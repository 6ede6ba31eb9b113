package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/doi-comments-api/internal/models"
)

// FixedWindow is an in-process fixed-window limiter.
//
// The entry map is locked only to look up or create an identity's entry;
// counting happens under the entry's own mutex, so one busy identity never
// blocks the others.
type FixedWindow struct {
	mu      sync.RWMutex
	entries map[string]*windowEntry

	limit        int
	window       time.Duration
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time

	stop chan struct{}
	once sync.Once
}

type windowEntry struct {
	mu       sync.Mutex
	state    models.ClientWindowState
	lastSeen time.Time
}

// Option configures a FixedWindow
type Option func(*FixedWindow)

// WithIdleTTL sets how long an idle identity is kept before cleanup
func WithIdleTTL(d time.Duration) Option {
	return func(l *FixedWindow) { l.idleTTL = d }
}

// WithCleanupEvery sets the janitor interval; zero disables the janitor
func WithCleanupEvery(d time.Duration) Option {
	return func(l *FixedWindow) { l.cleanupEvery = d }
}

// WithNow overrides the clock
func WithNow(now func() time.Time) Option {
	return func(l *FixedWindow) { l.now = now }
}

// NewFixedWindow allows limit requests per window for each identity
func NewFixedWindow(limit int, window time.Duration, opts ...Option) *FixedWindow {
	l := &FixedWindow{
		entries:      make(map[string]*windowEntry),
		limit:        limit,
		window:       window,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow counts one request for identity
func (l *FixedWindow) Allow(ctx context.Context, identity string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	now := l.now()
	start, retryAfter := windowFor(now, l.window)
	ent := l.entry(identity)

	ent.mu.Lock()
	defer ent.mu.Unlock()

	ent.lastSeen = now
	if !ent.state.WindowStart.Equal(start) {
		ent.state.WindowStart = start
		ent.state.Count = 0
	}

	dec := Decision{
		Limit:       l.limit,
		WindowStart: start,
		RetryAfter:  retryAfter,
	}
	if ent.state.Count >= l.limit {
		dec.Count = ent.state.Count
		return dec, nil
	}

	ent.state.Count++
	dec.Allowed = true
	dec.Count = ent.state.Count
	return dec, nil
}

// State returns a copy of identity's counters, if it has any
func (l *FixedWindow) State(identity string) (models.ClientWindowState, bool) {
	l.mu.RLock()
	ent, ok := l.entries[identity]
	l.mu.RUnlock()
	if !ok {
		return models.ClientWindowState{}, false
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.state, true
}

// Limit returns the per-window ceiling
func (l *FixedWindow) Limit() int { return l.limit }

// Window returns the window length
func (l *FixedWindow) Window() time.Duration { return l.window }

// Cleanup drops identities not seen within the idle TTL
func (l *FixedWindow) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ent := range l.entries {
		ent.mu.Lock()
		idle := ent.lastSeen.Before(cutoff)
		ent.mu.Unlock()
		if idle {
			delete(l.entries, id)
		}
	}
}

// Len returns the number of tracked identities
func (l *FixedWindow) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// StartJanitor removes idle identities periodically until ctx is done or
// the limiter is closed.
func (l *FixedWindow) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// Close stops the janitor
func (l *FixedWindow) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

func (l *FixedWindow) entry(identity string) *windowEntry {
	l.mu.RLock()
	ent, ok := l.entries[identity]
	l.mu.RUnlock()
	if ok {
		return ent
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ent, ok = l.entries[identity]; ok {
		return ent
	}
	ent = &windowEntry{state: models.ClientWindowState{Identity: identity}}
	l.entries[identity] = ent
	return ent
}
