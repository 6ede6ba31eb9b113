package service

import (
	"context"
	"io"
	"time"

	"github.com/doi-comments-api/internal/config"
	"github.com/doi-comments-api/internal/models"
	"github.com/doi-comments-api/internal/ratelimit"
	"github.com/doi-comments-api/internal/repository"
)

// Export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
)

// CommentService is the public access layer of the comment store.
// Every call passes admission control first; failures are *models.Error.
type CommentService interface {
	AddComment(ctx context.Context, req *models.AddCommentRequest, clientIdentity string) (*models.Comment, error)
	GetComments(ctx context.Context, doi, clientIdentity string) ([]*models.Comment, error)
	GetRecentComments(ctx context.Context, limit int, clientIdentity string) ([]*models.Comment, error)
	ExportComments(ctx context.Context, doi, format, clientIdentity string, w io.Writer) (int, error)
	Count(ctx context.Context) (int, error)
}

// Options tunes the comment service
type Options struct {
	StoreTimeout   time.Duration
	LimiterTimeout time.Duration
	RecentMax      int
}

// OptionsFromConfig derives service options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StoreTimeout:   cfg.Store.OperationTimeout,
		LimiterTimeout: cfg.RateLimit.Timeout,
		RecentMax:      cfg.Store.RecentMax,
	}
}

// Services holds all service interfaces
type Services struct {
	Comment CommentService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, limiter ratelimit.Limiter, opts Options) *Services {
	return &Services{
		Comment: newCommentService(repos.Comment, limiter, opts),
	}
}
