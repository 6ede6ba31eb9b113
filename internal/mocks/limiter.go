package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/doi-comments-api/internal/ratelimit"
)

// MockLimiter admits the first Limit calls per identity, or all calls when
// Limit is zero.
type MockLimiter struct {
	mu         sync.Mutex
	Limit      int
	RetryAfter time.Duration
	Err        error
	Counts     map[string]int
	Calls      int
}

// Verify interface compliance
var _ ratelimit.Limiter = (*MockLimiter)(nil)

func NewMockLimiter(limit int) *MockLimiter {
	return &MockLimiter{
		Limit:      limit,
		RetryAfter: 30 * time.Second,
		Counts:     make(map[string]int),
	}
}

func (m *MockLimiter) Allow(ctx context.Context, identity string) (ratelimit.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return ratelimit.Decision{}, m.Err
	}
	m.Counts[identity]++
	count := m.Counts[identity]
	return ratelimit.Decision{
		Allowed:    m.Limit == 0 || count <= m.Limit,
		Count:      count,
		Limit:      m.Limit,
		RetryAfter: m.RetryAfter,
	}, nil
}

func (m *MockLimiter) Close() error { return nil }
