package models

import (
	"fmt"
	"time"
)

// ErrorKind classifies failures returned to callers of the comment service
type ErrorKind string

const (
	KindInvalidDOI         ErrorKind = "InvalidDoi"
	KindEmptyComment       ErrorKind = "EmptyComment"
	KindRateLimited        ErrorKind = "RateLimited"
	KindStorageUnavailable ErrorKind = "StorageUnavailable"
)

// Error is the typed failure returned by validation, admission and storage.
// Two *Error values match under errors.Is when their kinds are equal.
type Error struct {
	Kind    ErrorKind   `json:"kind"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`

	// RetryAfter is set on RateLimited errors
	RetryAfter time.Duration `json:"-"`

	// Err is the underlying cause, if any
	Err error `json:"-"`
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidDOI         = &Error{Kind: KindInvalidDOI, Message: "invalid DOI"}
	ErrEmptyComment       = &Error{Kind: KindEmptyComment, Message: "empty comment"}
	ErrRateLimited        = &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
)

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewStorageError wraps a persistence failure as StorageUnavailable
func NewStorageError(op string, err error) *Error {
	return &Error{
		Kind:    KindStorageUnavailable,
		Message: op + " failed",
		Err:     err,
	}
}

// NewRateLimitedError reports an identity that exceeded its window ceiling
func NewRateLimitedError(identity string, retryAfter time.Duration, err error) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Field:      "identity",
		Message:    "too many requests, retry after the current window",
		Value:      identity,
		RetryAfter: retryAfter,
		Err:        err,
	}
}
