package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/doi-comments-api/internal/models"
	"github.com/doi-comments-api/internal/ratelimit"
	"github.com/doi-comments-api/internal/repository"
	"github.com/doi-comments-api/internal/validation"
)

// defaultRetryAfter is suggested when the limiter itself fails
const defaultRetryAfter = time.Second

// commentService composes admission control, validation and the store
type commentService struct {
	repo    repository.CommentRepository
	limiter ratelimit.Limiter
	opts    Options
}

// newCommentService creates a new CommentService
func newCommentService(repo repository.CommentRepository, limiter ratelimit.Limiter, opts Options) *commentService {
	if opts.RecentMax <= 0 {
		opts.RecentMax = models.MaxRecentLimit
	}
	return &commentService{
		repo:    repo,
		limiter: limiter,
		opts:    opts,
	}
}

// AddComment validates and stores a new comment
func (s *commentService) AddComment(ctx context.Context, req *models.AddCommentRequest, clientIdentity string) (*models.Comment, error) {
	if err := s.admit(ctx, clientIdentity); err != nil {
		return nil, err
	}

	valid, err := validation.ValidateComment(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	comment, err := s.repo.Append(ctx, valid.DOI, valid.UserName, valid.Text)
	if err != nil {
		return nil, storageError("append comment", err)
	}
	return comment, nil
}

// GetComments returns a DOI's comments, oldest first
func (s *commentService) GetComments(ctx context.Context, doi, clientIdentity string) ([]*models.Comment, error) {
	if err := s.admit(ctx, clientIdentity); err != nil {
		return nil, err
	}
	if err := validation.ValidateDOI(doi); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	comments, err := s.repo.QueryByDOI(ctx, doi)
	if err != nil {
		return nil, storageError("query comments", err)
	}
	return comments, nil
}

// GetRecentComments returns the newest comments across all DOIs.
// A non-positive limit selects the default; larger limits are clamped.
func (s *commentService) GetRecentComments(ctx context.Context, limit int, clientIdentity string) ([]*models.Comment, error) {
	if err := s.admit(ctx, clientIdentity); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = models.DefaultRecentLimit
	}
	if limit > s.opts.RecentMax {
		limit = s.opts.RecentMax
	}

	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	comments, err := s.repo.QueryMostRecent(ctx, limit)
	if err != nil {
		return nil, storageError("query recent comments", err)
	}
	return comments, nil
}

// ExportComments writes a DOI's comments to w as NDJSON or a JSON array and
// returns how many were written.
func (s *commentService) ExportComments(ctx context.Context, doi, format, clientIdentity string, w io.Writer) (int, error) {
	if format != FormatNDJSON && format != FormatJSON {
		return 0, fmt.Errorf("unsupported format: %s", format)
	}
	if err := s.admit(ctx, clientIdentity); err != nil {
		return 0, err
	}
	if err := validation.ValidateDOI(doi); err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	// Nothing reaches w before the store yields its first row, so a failed
	// read can still be reported to the caller.
	count := 0

	// write failures belong to the caller's writer, not the store
	var writeErr error
	write := func(p []byte) error {
		if _, err := w.Write(p); err != nil {
			writeErr = err
			return err
		}
		return nil
	}

	err := s.repo.StreamByDOI(ctx, doi, func(c *models.Comment) error {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if format == FormatJSON {
			sep := byte(',')
			if count == 0 {
				sep = '['
			}
			data = append([]byte{sep}, data...)
		}
		if format == FormatNDJSON {
			data = append(data, '\n')
		}
		if err := write(data); err != nil {
			return err
		}
		count++
		return nil
	})
	if writeErr != nil {
		return count, writeErr
	}
	if err != nil {
		return count, storageError("export comments", err)
	}

	if format == FormatJSON {
		closing := "]"
		if count == 0 {
			closing = "[]"
		}
		if _, err := io.WriteString(w, closing); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Count returns the total number of stored comments
func (s *commentService) Count(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, storageError("count comments", err)
	}
	return count, nil
}

// admit charges one request to clientIdentity. A limiter failure rejects the
// request rather than letting it through unmetered.
func (s *commentService) admit(ctx context.Context, clientIdentity string) error {
	if s.limiter == nil {
		return nil
	}

	ctx, cancel := withTimeout(ctx, s.opts.LimiterTimeout)
	defer cancel()

	dec, err := s.limiter.Allow(ctx, clientIdentity)
	if err != nil {
		return models.NewRateLimitedError(clientIdentity, defaultRetryAfter, err)
	}
	if !dec.Allowed {
		return models.NewRateLimitedError(clientIdentity, dec.RetryAfter, nil)
	}
	return nil
}

// storageError keeps typed errors and reports anything else as StorageUnavailable
func storageError(op string, err error) error {
	var typed *models.Error
	if errors.As(err, &typed) {
		return typed
	}
	return models.NewStorageError(op, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
