package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/doi-comments-api/internal/models"
	"github.com/doi-comments-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CommentHandler handles comment endpoints
type CommentHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services: services,
		log:      log.With().Str("handler", "comment").Logger(),
	}
}

// AddComment handles POST /v1/comments
func (h *CommentHandler) AddComment(c *gin.Context) {
	var req models.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(kindInvalidRequest, "", "invalid request body"))
		return
	}

	comment, err := h.services.Comment.AddComment(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.logFailure(c, "add comment", err)
		writeError(c, err)
		return
	}

	h.log.Debug().
		Str("doi", comment.DOI).
		Int64("timestamp", comment.Timestamp).
		Msg("Comment stored")

	c.JSON(http.StatusCreated, comment)
}

// GetComments handles GET /v1/comments?doi=...
func (h *CommentHandler) GetComments(c *gin.Context) {
	comments, err := h.services.Comment.GetComments(c.Request.Context(), c.Query("doi"), c.ClientIP())
	if err != nil {
		h.logFailure(c, "get comments", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// GetRecentComments handles GET /v1/comments/recent?limit=N
func (h *CommentHandler) GetRecentComments(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(kindInvalidRequest, "limit", "limit must be an integer"))
			return
		}
		limit = n
	}

	comments, err := h.services.Comment.GetRecentComments(c.Request.Context(), limit, c.ClientIP())
	if err != nil {
		h.logFailure(c, "get recent comments", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// ExportComments handles GET /v1/comments/export?doi=...&format=...
// Streams the DOI's comments directly to the response
func (h *CommentHandler) ExportComments(c *gin.Context) {
	format := c.DefaultQuery("format", service.FormatNDJSON)
	contentType := ""
	switch format {
	case service.FormatNDJSON:
		contentType = "application/x-ndjson"
	case service.FormatJSON:
		contentType = "application/json"
	default:
		c.JSON(http.StatusBadRequest, errorBody(kindInvalidRequest, "format", "format must be one of: ndjson, json"))
		return
	}

	doi := c.Query("doi")
	w := &streamWriter{c: c, contentType: contentType}

	count, err := h.services.Comment.ExportComments(c.Request.Context(), doi, format, c.ClientIP(), w)
	if err != nil {
		h.logFailure(c, "export comments", err)
		if !w.started {
			writeError(c, err)
		}
		// Can't return error JSON after streaming has started
		return
	}
	if !w.started {
		c.Header("Content-Type", contentType)
		c.Status(http.StatusOK)
	}

	h.log.Info().
		Str("doi", doi).
		Str("format", format).
		Int("count", count).
		Msg("Export completed")
}

// logFailure logs storage and unexpected failures; client errors are left to
// the request log.
func (h *CommentHandler) logFailure(c *gin.Context, op string, err error) {
	var typed *models.Error
	if errors.As(err, &typed) && typed.Kind != models.KindStorageUnavailable {
		return
	}
	h.log.Error().
		Err(err).
		Str("op", op).
		Str("request_id", c.GetString(ctxRequestID)).
		Msg("Request failed")
}

// streamWriter commits status and headers on the first write so that errors
// raised before any output can still be rendered as JSON.
type streamWriter struct {
	c           *gin.Context
	contentType string
	started     bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		w.c.Header("Content-Type", w.contentType)
		w.c.Status(http.StatusOK)
	}
	n, err := w.c.Writer.Write(p)
	if err == nil {
		w.c.Writer.Flush()
	}
	return n, err
}
