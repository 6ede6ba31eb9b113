package mocks

import (
	"context"
	"encoding/json"
	"io"

	"github.com/doi-comments-api/internal/models"
	"github.com/doi-comments-api/internal/service"
)

// MockCommentService is a mock implementation of CommentService
type MockCommentService struct {
	AddFunc    func(ctx context.Context, req *models.AddCommentRequest, clientIdentity string) (*models.Comment, error)
	GetFunc    func(ctx context.Context, doi, clientIdentity string) ([]*models.Comment, error)
	RecentFunc func(ctx context.Context, limit int, clientIdentity string) ([]*models.Comment, error)
	Comments   map[string][]*models.Comment
	Added      []*models.AddCommentRequest
	Identities []string
	ExportErr  error
	CountErr   error
	LastLimit  int
	Total      int
}

// Verify interface compliance
var _ service.CommentService = (*MockCommentService)(nil)

func NewMockCommentService() *MockCommentService {
	return &MockCommentService{
		Comments: make(map[string][]*models.Comment),
	}
}

func (m *MockCommentService) AddComment(ctx context.Context, req *models.AddCommentRequest, clientIdentity string) (*models.Comment, error) {
	m.Identities = append(m.Identities, clientIdentity)
	m.Added = append(m.Added, req)
	if m.AddFunc != nil {
		return m.AddFunc(ctx, req, clientIdentity)
	}
	c := &models.Comment{DOI: req.DOI, Timestamp: 1700000000000, UserName: req.UserName, Text: req.Text}
	m.Comments[req.DOI] = append(m.Comments[req.DOI], c)
	return c, nil
}

func (m *MockCommentService) GetComments(ctx context.Context, doi, clientIdentity string) ([]*models.Comment, error) {
	m.Identities = append(m.Identities, clientIdentity)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, doi, clientIdentity)
	}
	comments := m.Comments[doi]
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}

func (m *MockCommentService) GetRecentComments(ctx context.Context, limit int, clientIdentity string) ([]*models.Comment, error) {
	m.Identities = append(m.Identities, clientIdentity)
	m.LastLimit = limit
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, limit, clientIdentity)
	}
	return []*models.Comment{}, nil
}

func (m *MockCommentService) ExportComments(ctx context.Context, doi, format, clientIdentity string, w io.Writer) (int, error) {
	m.Identities = append(m.Identities, clientIdentity)
	if m.ExportErr != nil {
		return 0, m.ExportErr
	}
	count := 0
	for _, c := range m.Comments[doi] {
		data, err := json.Marshal(c)
		if err != nil {
			return count, err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *MockCommentService) Count(ctx context.Context) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return m.Total, nil
}
