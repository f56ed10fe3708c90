package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/frontdesk-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler is a Handler with routes that are served without a token.
type PublicHandler interface {
	Handler
	RegisterPublicRoutes(*gin.RouterGroup)
}

type Router struct {
	engine       *gin.Engine
	authenticate gin.HandlerFunc
	health       Handler
	handlers     []Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	SizeLimit        middleware.SizeLimitConfig
	// Metrics records every request. Nil disables HTTP metrics.
	Metrics gin.HandlerFunc
}

func NewRouter(authenticate gin.HandlerFunc, health Handler, config RouterConfig, handlers ...Handler) *Router {
	engine := gin.New()

	r := &Router{
		engine:       engine,
		authenticate: authenticate,
		health:       health,
		handlers:     handlers,
	}

	// ErrorHandler must come before Validation: post-Next code runs in
	// reverse, and Validation renders field errors first.
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)
	if config.Metrics != nil {
		engine.Use(config.Metrics)
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.Use(
		middleware.SizeLimit(config.SizeLimit),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)
	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	if r.health != nil {
		r.health.RegisterRoutes(api)
	}

	for _, h := range r.handlers {
		if p, ok := h.(PublicHandler); ok {
			p.RegisterPublicRoutes(api)
		}
	}

	protected := api.Group("")
	protected.Use(r.authenticate, middleware.Cache(middleware.RecordCacheConfig()))
	for _, h := range r.handlers {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
