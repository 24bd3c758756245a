package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"investmon/internal/monitor"
	"investmon/internal/stream"
)

var ErrInvalidRequest = errors.New("invalid request")

func respondError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func respondErrorWithDetails(c *gin.Context, code int, err error, details string) {
	c.JSON(code, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: details,
	})
}

func mapServiceError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, monitor.ErrEndpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, stream.ErrAlreadyRunning), errors.Is(err, monitor.ErrSweepInProgress):
		return http.StatusConflict
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
