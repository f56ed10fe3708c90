package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxLoggedBody = 4 << 10

// Routes whose bodies carry symptoms, diagnoses or medical files.
var unloggedBodyRoutes = []string{
	"/api/v1/users/register",
	"/api/v1/appointments",
	"/api/v1/discharges",
	"/api/v1/certificates",
}

// Logger logs every request through the request scoped logger set by
// RequestID. Small JSON bodies of other write routes are logged; multipart
// uploads and bodies of unknown length never are.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		method := c.Request.Method

		var requestBody []byte
		if logBody(c) {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		logger := requestLogger(c)

		var event *zerolog.Event
		msg := "Request processed"
		switch {
		case statusCode >= 500:
			event = logger.Error()
			msg = "Server error"
		case statusCode >= 400:
			event = logger.Warn()
			msg = "Client error"
		default:
			event = logger.Info()
		}

		event = event.
			Str("client_ip", c.ClientIP()).
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent())
		if len(requestBody) > 0 && json.Valid(requestBody) {
			event = event.RawJSON("request", requestBody)
		}
		event.Msg(msg)
	}
}

func logBody(c *gin.Context) bool {
	if c.Request.Method == http.MethodGet || c.Request.Body == nil || !isJSON(c.ContentType()) {
		return false
	}
	if n := c.Request.ContentLength; n <= 0 || n > maxLoggedBody {
		return false
	}
	route := c.FullPath()
	for _, prefix := range unloggedBodyRoutes {
		if strings.HasPrefix(route, prefix) {
			return false
		}
	}
	return true
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}
