package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/doi-comments-api/internal/models"
	"github.com/doi-comments-api/internal/repository"
)

// MockCommentRepository is a mock implementation of CommentRepository
type MockCommentRepository struct {
	mu          sync.Mutex
	Comments    map[string][]*models.Comment
	NextTS      int64
	AppendError error
	QueryError  error
	AppendFunc  func(ctx context.Context, doi, userName, text string) (*models.Comment, error)
	AppendCalls int
	QueryCalls  int
	LastLimit   int
	Closed      bool
}

// Verify interface compliance
var _ repository.CommentRepository = (*MockCommentRepository)(nil)

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{
		Comments: make(map[string][]*models.Comment),
		NextTS:   1700000000000,
	}
}

func (m *MockCommentRepository) Append(ctx context.Context, doi, userName, text string) (*models.Comment, error) {
	m.mu.Lock()
	m.AppendCalls++
	fn := m.AppendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, doi, userName, text)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendError != nil {
		return nil, m.AppendError
	}
	c := &models.Comment{DOI: doi, Timestamp: m.NextTS, UserName: userName, Text: text}
	m.NextTS++
	m.Comments[doi] = append(m.Comments[doi], c)
	cp := *c
	return &cp, nil
}

func (m *MockCommentRepository) QueryByDOI(ctx context.Context, doi string) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	out := make([]*models.Comment, 0, len(m.Comments[doi]))
	for _, c := range m.Comments[doi] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCommentRepository) QueryMostRecent(ctx context.Context, limit int) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++
	m.LastLimit = limit
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	var all []*models.Comment
	for _, comments := range m.Comments {
		for _, c := range comments {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	if len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = []*models.Comment{}
	}
	return all, nil
}

func (m *MockCommentRepository) StreamByDOI(ctx context.Context, doi string, fn func(*models.Comment) error) error {
	comments, err := m.QueryByDOI(ctx, doi)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockCommentRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, comments := range m.Comments {
		n += len(comments)
	}
	return n, nil
}

func (m *MockCommentRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
