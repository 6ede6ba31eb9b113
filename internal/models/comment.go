package models

// DefaultUserName is stored when a comment is submitted without a display name
const DefaultUserName = "Anonymous"

// Comment represents a reader comment attached to a DOI.
// DOI is the partition key and Timestamp (epoch milliseconds, assigned by the
// store) is the clustering key. Comments are immutable once stored.
type Comment struct {
	DOI       string `json:"doi" db:"doi"`
	Timestamp int64  `json:"timestamp" db:"timestamp_ms"`
	UserName  string `json:"userName" db:"user_name"`
	Text      string `json:"text" db:"body"`
}

// CommentKey addresses a single comment
type CommentKey struct {
	DOI       string
	Timestamp int64
}

// Key returns the (doi, timestamp) key of the comment
func (c *Comment) Key() CommentKey {
	return CommentKey{DOI: c.DOI, Timestamp: c.Timestamp}
}

// AddCommentRequest is the body of a comment submission.
// The caller never supplies a timestamp.
type AddCommentRequest struct {
	DOI      string `json:"doi"`
	UserName string `json:"userName"`
	Text     string `json:"text"`
}

// Recent feed limits
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)
