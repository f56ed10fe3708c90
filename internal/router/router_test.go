package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/frontdesk-api/internal/handler/health"
	"github.com/jwalitptl/frontdesk-api/internal/middleware"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHandler struct{}

func (fakeHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/open", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "success"}) })
}

func (fakeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/closed", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "success"}) })
	rg.GET("/missing", func(c *gin.Context) { _ = c.Error(apperrors.NotFound("thing", nil)) })
}

func newTestRouter() *gin.Engine {
	deny := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error"})
			return
		}
		c.Next()
	}
	r := NewRouter(deny, health.NewHandler(nil, nil), RouterConfig{
		CORSConfig: middleware.DefaultCORSConfig(),
		SizeLimit:  middleware.DefaultSizeLimitConfig(),
	}, fakeHandler{})
	r.Setup()
	return r.Engine()
}

func serve(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	r := newTestRouter()

	w := serve(r, "/api/v1/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))

	assert.Equal(t, http.StatusOK, serve(r, "/api/v1/open", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/api/v1/closed", "").Code)
	w = serve(r, "/api/v1/closed", "t")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
}

func TestErrorsAreRendered(t *testing.T) {
	w := serve(newTestRouter(), "/api/v1/missing", "t")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
