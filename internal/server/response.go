package server

import (
	"errors"
	"net/http"

	"bookdigest/internal/chat"
	"bookdigest/internal/database"
	"bookdigest/internal/readwise"
	"bookdigest/internal/summary"

	"github.com/gin-gonic/gin"
)

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
}

// fail maps domain errors to responses and logs the rest as internal.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Summary not found")
	case errors.Is(err, database.ErrInvalid):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, summary.ErrMalformedDocument):
		abortWithError(c, http.StatusUnprocessableEntity, "could not parse summary")
	case errors.Is(err, readwise.ErrNothingToExport):
		abortWithError(c, http.StatusBadRequest, "No highlights to export")
	case errors.Is(err, readwise.ErrMissingToken):
		abortWithError(c, http.StatusBadRequest, "Readwise is not connected")
	case errors.Is(err, readwise.ErrInvalidToken):
		abortWithError(c, http.StatusUnauthorized, "Invalid Readwise token")
	case errors.Is(err, chat.ErrNoQuestion):
		abortWithError(c, http.StatusBadRequest, "No question to answer")
	case readwise.IsUpstreamError(err):
		s.log.WarnContext(c.Request.Context(), "Readwise request failed",
			"error", err,
			"path", c.FullPath())
		abortWithError(c, http.StatusBadGateway, "Readwise request failed")
	default:
		s.log.ErrorContext(c.Request.Context(), "Failed to handle request",
			"error", err,
			"path", c.FullPath())
		abortWithError(c, http.StatusInternalServerError, "Internal error")
	}
}
