package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge         int
	Private        bool
	NoStore        bool
	MustRevalidate bool
	Vary           []string
}

// RecordCacheConfig keeps patient records out of shared and browser caches.
func RecordCacheConfig() CacheConfig {
	return CacheConfig{
		Private: true,
		NoStore: true,
		Vary:    []string{"Authorization"},
	}
}

// Directives renders the Cache-Control value for config.
func (config CacheConfig) Directives() string {
	directives := make([]string, 0, 4)
	if config.Private {
		directives = append(directives, "private")
	} else {
		directives = append(directives, "public")
	}
	if config.NoStore {
		directives = append(directives, "no-store")
	} else if config.MaxAge > 0 {
		directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
	}
	if config.MustRevalidate {
		directives = append(directives, "must-revalidate")
	}
	return strings.Join(directives, ", ")
}

// Cache adds cache control headers to responses. Non-GET responses are never stored.
func Cache(config CacheConfig) gin.HandlerFunc {
	value := config.Directives()
	vary := strings.Join(config.Vary, ", ")
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
		} else {
			c.Header("Cache-Control", value)
		}
		if vary != "" {
			c.Header("Vary", vary)
		}
		c.Next()
	}
}
