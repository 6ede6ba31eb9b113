package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/doi-comments-api/internal/models"
	"github.com/gin-gonic/gin"
)

// Kinds produced only at the HTTP boundary
const (
	kindInvalidRequest models.ErrorKind = "InvalidRequest"
	kindUnauthorized   models.ErrorKind = "Unauthorized"
	kindInternal       models.ErrorKind = "Internal"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidDOI, models.KindEmptyComment, kindInvalidRequest:
		return http.StatusBadRequest
	case models.KindRateLimited:
		return http.StatusTooManyRequests
	case models.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case kindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(kind models.ErrorKind, field, message string) gin.H {
	body := gin.H{
		"kind":    kind,
		"message": message,
	}
	if field != "" {
		body["field"] = field
	}
	return gin.H{"error": body}
}

// writeError renders err as {"error": {...}} with the matching status.
// Causes of storage failures stay in the logs.
func writeError(c *gin.Context, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) {
		c.JSON(http.StatusInternalServerError, errorBody(kindInternal, "", "internal server error"))
		return
	}

	if typed.Kind == models.KindRateLimited {
		c.Header("Retry-After", retryAfterSeconds(typed))
	}

	field := typed.Field
	if typed.Kind == models.KindRateLimited {
		// the identity is the caller's own address
		field = ""
	}
	c.JSON(statusFor(typed.Kind), errorBody(typed.Kind, field, typed.Message))
}

// retryAfterSeconds rounds up to whole seconds, never below one
func retryAfterSeconds(e *models.Error) string {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
