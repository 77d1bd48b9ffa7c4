// internal/pkg/response/response.go
package response

import (
	"net/http"

	xerrors "arborlead-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// Abort FIRST before writing response
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// DomainError maps workflow/repository sentinel errors onto HTTP status codes.
func DomainError(c *gin.Context, message string, err error) {
	code := http.StatusInternalServerError
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		code = http.StatusNotFound
	case xerrors.Is(err, xerrors.ErrConcurrentModification),
		xerrors.Is(err, xerrors.ErrDuplicateEntry),
		xerrors.Is(err, xerrors.ErrConflict):
		code = http.StatusConflict
	case xerrors.Is(err, xerrors.ErrSessionExpired):
		code = http.StatusUnauthorized
	case xerrors.Is(err, xerrors.ErrForbidden):
		code = http.StatusForbidden
	case xerrors.Is(err, xerrors.ErrUnauthorized):
		code = http.StatusUnauthorized
	case xerrors.Is(err, xerrors.ErrRateLimited):
		code = http.StatusTooManyRequests
	case xerrors.Is(err, xerrors.ErrInvalidTransition),
		xerrors.Is(err, xerrors.ErrQuoteLocked),
		xerrors.Is(err, xerrors.ErrNotBillable),
		xerrors.Is(err, xerrors.ErrInvalidLineItem),
		xerrors.Is(err, xerrors.ErrInvalidRate),
		xerrors.Is(err, xerrors.ErrMissingQuoteTotal),
		xerrors.Is(err, xerrors.ErrInvalidInput):
		code = http.StatusBadRequest
	}
	Error(c, code, message, err)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
