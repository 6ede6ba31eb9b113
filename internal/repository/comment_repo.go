package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doi-comments-api/internal/database"
	"github.com/doi-comments-api/internal/models"
)

// sqlDialect holds the statements that differ between Postgres and SQLite
type sqlDialect struct {
	// lockDOI serializes writers of one DOI inside a transaction; empty when
	// the engine already serializes writers.
	lockDOI string
	// insert assigns max(now, last+1) for the DOI and returns the timestamp
	insert     string
	insertArgs func(doi string, now int64, userName, text string) []interface{}
	byDOI      string
	recent     string
	transient  func(error) bool
}

var postgresDialect = sqlDialect{
	lockDOI: `SELECT pg_advisory_xact_lock(hashtext($1))`,
	insert: `
		INSERT INTO comments (doi, timestamp_ms, user_name, body)
		SELECT $1, GREATEST($2::BIGINT, COALESCE(MAX(timestamp_ms) + 1, 0)), $3, $4
		FROM comments WHERE doi = $1
		RETURNING timestamp_ms
	`,
	insertArgs: func(doi string, now int64, userName, text string) []interface{} {
		return []interface{}{doi, now, userName, text}
	},
	byDOI:     `SELECT doi, timestamp_ms, user_name, body FROM comments WHERE doi = $1 ORDER BY timestamp_ms ASC`,
	recent:    `SELECT doi, timestamp_ms, user_name, body FROM comments ORDER BY timestamp_ms DESC, doi ASC LIMIT $1`,
	transient: isTransientPostgresErr,
}

var sqliteDialect = sqlDialect{
	insert: `
		INSERT INTO comments (doi, timestamp_ms, user_name, body)
		SELECT ?, MAX(?, COALESCE(MAX(timestamp_ms) + 1, 0)), ?, ?
		FROM comments WHERE doi = ?
		RETURNING timestamp_ms
	`,
	insertArgs: func(doi string, now int64, userName, text string) []interface{} {
		return []interface{}{doi, now, userName, text, doi}
	},
	byDOI:     `SELECT doi, timestamp_ms, user_name, body FROM comments WHERE doi = ? ORDER BY timestamp_ms ASC`,
	recent:    `SELECT doi, timestamp_ms, user_name, body FROM comments ORDER BY timestamp_ms DESC, doi ASC LIMIT ?`,
	transient: isTransientSQLiteErr,
}

// commentRepo is the SQL implementation of CommentRepository.
// The recency query is served by the idx_comments_recent index on
// timestamp_ms, so it reads at most limit rows.
type commentRepo struct {
	db      *database.DB
	dialect sqlDialect
	clock   *monotonicClock
	retry   retryConfig
}

// NewCommentRepo creates a comment repository for the DB's dialect
func NewCommentRepo(db *database.DB) (CommentRepository, error) {
	var dialect sqlDialect
	switch db.Dialect {
	case database.DialectPostgres:
		dialect = postgresDialect
	case database.DialectSQLite:
		dialect = sqliteDialect
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", db.Dialect)
	}
	return &commentRepo{
		db:      db,
		dialect: dialect,
		clock:   newMonotonicClock(time.Now),
		retry:   defaultRetryConfig,
	}, nil
}

// Append inserts a comment in a single transaction
func (r *commentRepo) Append(ctx context.Context, doi, userName, text string) (*models.Comment, error) {
	var ts int64
	err := retryOp(ctx, r.retry, r.dialect.transient, func() error {
		var err error
		ts, err = r.appendOnce(ctx, doi, userName, text)
		return err
	})
	if err != nil {
		return nil, models.NewStorageError("append comment", err)
	}

	r.clock.Observe(ts)
	return &models.Comment{
		DOI:       doi,
		Timestamp: ts,
		UserName:  userName,
		Text:      text,
	}, nil
}

func (r *commentRepo) appendOnce(ctx context.Context, doi, userName, text string) (int64, error) {
	var ts int64
	args := r.dialect.insertArgs(doi, r.clock.Next(), userName, text)

	// A single INSERT ... SELECT is atomic on its own
	if r.dialect.lockDOI == "" {
		err := r.db.QueryRowContext(ctx, r.dialect.insert, args...).Scan(&ts)
		return ts, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.dialect.lockDOI, doi); err != nil {
		return 0, err
	}

	if err := tx.QueryRowContext(ctx, r.dialect.insert, args...).Scan(&ts); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return ts, nil
}

// QueryByDOI returns all comments of a DOI, oldest first
func (r *commentRepo) QueryByDOI(ctx context.Context, doi string) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	err := r.StreamByDOI(ctx, doi, func(c *models.Comment) error {
		comments = append(comments, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// QueryMostRecent returns the newest comments across all DOIs
func (r *commentRepo) QueryMostRecent(ctx context.Context, limit int) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	if limit <= 0 {
		return comments, nil
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.recent, limit)
	if err != nil {
		return nil, models.NewStorageError("query recent comments", err)
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, models.NewStorageError("query recent comments", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("query recent comments", err)
	}
	return comments, nil
}

// StreamByDOI streams a DOI's comments in timestamp order.
// Errors returned by fn are passed through unchanged.
func (r *commentRepo) StreamByDOI(ctx context.Context, doi string, fn func(*models.Comment) error) error {
	rows, err := r.db.QueryContext(ctx, r.dialect.byDOI, doi)
	if err != nil {
		return models.NewStorageError("query comments", err)
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return models.NewStorageError("query comments", err)
		}
		if err := fn(comment); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return models.NewStorageError("query comments", err)
	}
	return nil
}

// Count returns the total number of comments
func (r *commentRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&count); err != nil {
		return 0, models.NewStorageError("count comments", err)
	}
	return count, nil
}

func (r *commentRepo) Close() error {
	return r.db.Close()
}

func scanComment(rows *sql.Rows) (*models.Comment, error) {
	var comment models.Comment
	if err := rows.Scan(&comment.DOI, &comment.Timestamp, &comment.UserName, &comment.Text); err != nil {
		return nil, err
	}
	return &comment, nil
}
