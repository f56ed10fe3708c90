package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports a dependency as down by returning an error.
type Check func(ctx context.Context) error

type Handler struct {
	checks  map[string]Check
	timeout time.Duration
	metrics gin.HandlerFunc
}

// NewHandler serves liveness, readiness and, when metrics is non-nil, the
// prometheus scrape endpoint.
func NewHandler(checks map[string]Check, metrics gin.HandlerFunc) *Handler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &Handler{
		checks:  checks,
		timeout: 2 * time.Second,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
		if h.metrics != nil {
			health.GET("/metrics", h.metrics)
		}
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	components := gin.H{}
	down := false
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			components[name] = gin.H{"status": "DOWN", "reason": err.Error()}
			down = true
			continue
		}
		components[name] = gin.H{"status": "UP"}
	}

	if down {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "components": components})
}

// BreakerCheck is down while the circuit breaker reporting state is open.
func BreakerCheck(state func() string) Check {
	return func(context.Context) error {
		if s := state(); s == "open" {
			return fmt.Errorf("circuit breaker is %s", s)
		}
		return nil
	}
}
