package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/doi-comments-api/internal/models"
)

// Memory store defaults
const (
	DefaultRecentShards   = 16
	DefaultRecentCapacity = models.MaxRecentLimit
)

// memoryCommentRepo keeps comments in process memory.
//
// Each DOI is a partition with its own lock, so appends to different DOIs
// never contend. Timestamps come from a store-wide monotonic clock, which
// makes every (doi, timestamp) key unique without coordinating partitions.
//
// QueryMostRecent is served by a sharded recency index: every shard keeps
// the newest recentCap comments of the DOIs hashed to it, sorted by timestamp.
// A query merges at most shards*limit entries no matter how large the store is.
type memoryCommentRepo struct {
	mu         sync.RWMutex
	partitions map[string]*partition

	shards    []*recentShard
	recentCap int

	clock *monotonicClock
	count atomic.Int64
}

type partition struct {
	mu       sync.RWMutex
	comments []*models.Comment
}

type recentShard struct {
	mu    sync.RWMutex
	items []*models.Comment // ascending by timestamp
}

// MemoryOption configures the memory repository
type MemoryOption func(*memoryCommentRepo)

// WithRecentShards sets the number of recency index shards
func WithRecentShards(n int) MemoryOption {
	return func(r *memoryCommentRepo) {
		if n > 0 {
			r.shards = make([]*recentShard, n)
		}
	}
}

// WithRecentCapacity sets how many comments each recency shard retains
func WithRecentCapacity(n int) MemoryOption {
	return func(r *memoryCommentRepo) {
		if n > 0 {
			r.recentCap = n
		}
	}
}

// WithClock overrides the wall clock used to assign timestamps
func WithClock(now func() time.Time) MemoryOption {
	return func(r *memoryCommentRepo) { r.clock.now = now }
}

// NewMemoryCommentRepo creates an in-memory comment repository
func NewMemoryCommentRepo(opts ...MemoryOption) CommentRepository {
	r := &memoryCommentRepo{
		partitions: make(map[string]*partition),
		shards:     make([]*recentShard, DefaultRecentShards),
		recentCap:  DefaultRecentCapacity,
		clock:      newMonotonicClock(time.Now),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.shards {
		r.shards[i] = &recentShard{}
	}
	return r
}

// Append stores a comment under its DOI partition
func (r *memoryCommentRepo) Append(ctx context.Context, doi, userName, text string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewStorageError("append comment", err)
	}

	p := r.partition(doi, true)
	shard := r.shardFor(doi)

	p.mu.Lock()
	defer p.mu.Unlock()

	comment := &models.Comment{
		DOI:       doi,
		Timestamp: r.clock.Next(),
		UserName:  userName,
		Text:      text,
	}
	p.comments = append(p.comments, comment)
	shard.insert(comment, r.recentCap)
	r.count.Add(1)

	stored := *comment
	return &stored, nil
}

// QueryByDOI returns copies of a partition's comments in timestamp order
func (r *memoryCommentRepo) QueryByDOI(ctx context.Context, doi string) ([]*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewStorageError("query comments", err)
	}

	p := r.partition(doi, false)
	if p == nil {
		return []*models.Comment{}, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return copyComments(p.comments), nil
}

// QueryMostRecent merges the heads of every recency shard
func (r *memoryCommentRepo) QueryMostRecent(ctx context.Context, limit int) ([]*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewStorageError("query recent comments", err)
	}
	if limit <= 0 {
		return []*models.Comment{}, nil
	}
	if limit > r.recentCap {
		limit = r.recentCap
	}

	merged := make([]*models.Comment, 0, limit)
	for _, shard := range r.shards {
		merged = append(merged, shard.newest(limit)...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// StreamByDOI walks a snapshot of the partition
func (r *memoryCommentRepo) StreamByDOI(ctx context.Context, doi string, fn func(*models.Comment) error) error {
	comments, err := r.QueryByDOI(ctx, doi)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if err := ctx.Err(); err != nil {
			return models.NewStorageError("query comments", err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored comments
func (r *memoryCommentRepo) Count(ctx context.Context) (int, error) {
	return int(r.count.Load()), nil
}

func (r *memoryCommentRepo) Close() error { return nil }

func (r *memoryCommentRepo) partition(doi string, create bool) *partition {
	r.mu.RLock()
	p, ok := r.partitions[doi]
	r.mu.RUnlock()
	if ok || !create {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.partitions[doi]; ok {
		return p
	}
	p = &partition{}
	r.partitions[doi] = p
	return p
}

func (r *memoryCommentRepo) shardFor(doi string) *recentShard {
	return r.shards[xxhash.Sum64String(doi)%uint64(len(r.shards))]
}

// insert keeps the shard sorted and bounded to capacity entries
func (s *recentShard) insert(c *models.Comment, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].Timestamp > c.Timestamp
	})
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = c

	if len(s.items) > capacity {
		n := copy(s.items, s.items[len(s.items)-capacity:])
		for j := n; j < len(s.items); j++ {
			s.items[j] = nil
		}
		s.items = s.items[:n]
	}
}

// newest returns copies of up to n of the shard's latest comments
func (s *recentShard) newest(n int) []*models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.items) - n
	if start < 0 {
		start = 0
	}
	return copyComments(s.items[start:])
}

func copyComments(src []*models.Comment) []*models.Comment {
	out := make([]*models.Comment, len(src))
	for i, c := range src {
		cp := *c
		out[i] = &cp
	}
	return out
}
