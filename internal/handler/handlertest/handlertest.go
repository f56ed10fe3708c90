// Package handlertest builds gin engines for handler tests.
package handlertest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Registrar is implemented by every resource handler.
type Registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts h under /api/v1 behind the error middleware. A nil actor
// leaves requests unauthenticated.
func Router(h Registrar, actor *identity.Actor) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Validation(middleware.DefaultValidationConfig()))
	r.Use(func(c *gin.Context) {
		if actor != nil {
			c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), *actor))
		}
		c.Next()
	})
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func As(id, role string) *identity.Actor {
	return &identity.Actor{ID: id, Role: role}
}

// Do serves a request with an optional JSON body.
func Do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// Envelope is the decoded body of a handler reply.
type Envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Refresh   bool            `json:"refresh"`
	Available []string        `json:"available"`
}

func Decode(w *httptest.ResponseRecorder) Envelope {
	var env Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env
}
