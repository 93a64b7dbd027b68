// Package response writes API errors in one shape: {"error": msg, "kind": kind}.
package response

import (
	"errors"
	"net/http"

	"jobtrail-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// StatusCode maps an error kind to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrDuplicateFilter),
		errors.Is(err, apperror.ErrAlreadyLinked),
		errors.Is(err, apperror.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error aborts the request with the mapped status. Internal errors are
// recorded on the context for the logging middleware and hidden from
// the client.
func Error(c *gin.Context, err error) {
	status := StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": apperror.Kind(err)})
}

// BadRequest reports a malformed request body or query.
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperror.KindValidation})
}
