package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type statusCoder interface {
	StatusCode() int
}

// ErrorHandler logs errors attached with c.Error and, unless the handler
// already replied, renders the last one.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		logger := requestLogger(c)
		for _, e := range c.Errors {
			logger.Error().
				Err(e.Err).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Interface("meta", e.Meta).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		status, message := Describe(c.Errors.Last().Err)
		c.JSON(status, ErrorResponse{
			Status:    "error",
			Message:   message,
			RequestID: requestID,
		})
	}
}

// requestLogger returns the logger RequestID attached, or the global one.
func requestLogger(c *gin.Context) *zerolog.Logger {
	logger := zerolog.Ctx(c.Request.Context())
	if logger.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return logger
}

// Describe maps err to an HTTP status and a client safe message.
func Describe(err error) (int, string) {
	status := http.StatusInternalServerError
	var sc statusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		return status, "Internal server error"
	}
	if appErr, ok := apperrors.As(err); ok {
		return status, appErr.Message
	}
	return status, err.Error()
}
