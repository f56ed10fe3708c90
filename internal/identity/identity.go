// Package identity carries the authenticated caller through request
// contexts. Handlers trust the Actor it provides.
package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/pkg/auth"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (a Actor) Is(role string) bool {
	return a.Role == role
}

type ctxKey struct{}

const ginKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// Current returns the actor set by Middleware.Authenticate.
func Current(c *gin.Context) (Actor, bool) {
	if v, ok := c.Get(ginKey); ok {
		if a, ok := v.(Actor); ok {
			return a, true
		}
	}
	return FromContext(c.Request.Context())
}

// UserLookup resolves the user behind a token subject.
type UserLookup interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

type Config struct {
	CacheTTL        time.Duration
	CleanupInterval time.Duration
}

type Middleware struct {
	tokens auth.JWTService
	users  UserLookup
	cache  *cache.Cache
}

func NewMiddleware(tokens auth.JWTService, users UserLookup, cfg Config) *Middleware {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Middleware{
		tokens: tokens,
		users:  users,
		cache:  cache.New(cfg.CacheTTL, cfg.CleanupInterval),
	}
}

// Authenticate validates the bearer token and admits approved users only.
// The role comes from the stored user record, not from the token.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		actor, err := m.resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			if appErr, ok := apperrors.As(err); ok {
				abort(c, appErr.StatusCode(), appErr.Message)
				return
			}
			abort(c, http.StatusUnauthorized, "unknown user")
			return
		}

		c.Set(ginKey, actor)
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (m *Middleware) resolve(ctx context.Context, userID string) (Actor, error) {
	if cached, found := m.cache.Get(userID); found {
		return cached.(Actor), nil
	}

	u, err := m.users.Get(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return Actor{}, apperrors.Unauthorized(err)
		}
		return Actor{}, err
	}
	if u.Status != model.UserStatusApproved {
		return Actor{}, apperrors.Forbidden("account is awaiting approval")
	}

	actor := Actor{ID: u.ID, Role: u.Role}
	m.cache.Set(userID, actor, cache.DefaultExpiration)
	return actor, nil
}

// Forget drops a cached user, e.g. after the record was rejected.
func (m *Middleware) Forget(userID string) {
	m.cache.Delete(userID)
}

// RequireRole admits actors holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := Current(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "permission denied")
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}
