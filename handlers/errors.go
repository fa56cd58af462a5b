package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imprevi/clipgen/types"
)

// statusFor maps a job error kind to an HTTP status.
func statusFor(kind types.ErrorKind) int {
	switch kind {
	case types.ErrInvalidParameters:
		return http.StatusBadRequest
	case types.ErrInvalidState:
		return http.StatusConflict
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrUnprocessableMedia:
		return http.StatusUnprocessableEntity
	case types.ErrUnreachable:
		return http.StatusBadGateway
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a classified error response.
func respondError(c *gin.Context, err error) {
	je := types.AsJobError(err)
	c.JSON(statusFor(je.Kind), gin.H{
		"error": je.Message,
		"kind":  je.Kind,
	})
}
