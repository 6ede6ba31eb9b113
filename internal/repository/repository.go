package repository

import (
	"context"

	"github.com/doi-comments-api/internal/config"
	"github.com/doi-comments-api/internal/database"
	"github.com/doi-comments-api/internal/models"
)

// CommentRepository is the authoritative comment store.
// Comments are partitioned by DOI and ordered by their store-assigned
// millisecond timestamp inside a partition.
type CommentRepository interface {
	// Append assigns the timestamp and persists the comment. It either stores
	// the whole record or nothing.
	Append(ctx context.Context, doi, userName, text string) (*models.Comment, error)
	// QueryByDOI returns every comment of one DOI, oldest first. An unseen DOI
	// yields an empty slice.
	QueryByDOI(ctx context.Context, doi string) ([]*models.Comment, error)
	// QueryMostRecent returns up to limit comments across all DOIs, newest first.
	QueryMostRecent(ctx context.Context, limit int) ([]*models.Comment, error)
	// StreamByDOI calls fn for each comment of one DOI, oldest first.
	StreamByDOI(ctx context.Context, doi string, fn func(*models.Comment) error) error
	// Count returns the total number of stored comments
	Count(ctx context.Context) (int, error)
	Close() error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Comment CommentRepository
}

// Close releases every repository
func (r *Repositories) Close() error {
	if r.Comment == nil {
		return nil
	}
	return r.Comment.Close()
}

// New creates SQL-backed repositories over db
func New(db *database.DB) (*Repositories, error) {
	comments, err := NewCommentRepo(db)
	if err != nil {
		return nil, err
	}
	return &Repositories{Comment: comments}, nil
}

// NewMemory creates in-process repositories
func NewMemory(cfg *config.StoreConfig) *Repositories {
	return &Repositories{
		Comment: NewMemoryCommentRepo(
			WithRecentShards(cfg.RecentShards),
			WithRecentCapacity(cfg.RecentMax),
		),
	}
}
