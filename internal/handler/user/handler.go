package user

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/frontdesk-api/internal/handler"
	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/service/user"
	apperrors "github.com/jwalitptl/frontdesk-api/pkg/errors"
)

// SessionCache drops cached identities. Implemented by identity.Middleware.
type SessionCache interface {
	Forget(userID string)
}

type Handler struct {
	service  user.UserServicer
	sessions SessionCache
}

// NewHandler takes the identity cache so rejected users lose access at once.
// sessions may be nil.
func NewHandler(service user.UserServicer, sessions SessionCache) *Handler {
	return &Handler{service: service, sessions: sessions}
}

// RegisterPublicRoutes mounts the routes that need no token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/register", h.Register)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := identity.RequireRole(model.UserRoleAdmin)
	staff := identity.RequireRole(model.UserRoleDoctor, model.UserRoleAdmin)

	users := rg.Group("/users")
	{
		users.GET("/me", h.Me)
		users.GET("/pending", admin, h.ListPending)
		users.GET("/:id", h.GetUser)
		users.POST("/:id/approve", admin, h.Approve)
		users.POST("/:id/reject", admin, h.Reject)
	}

	rg.GET("/doctors", h.ListDoctors)
	rg.GET("/patients/admitted", staff, h.ListAdmitted)
	rg.GET("/admin/stats", admin, h.Stats)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid registration request", err))
		return
	}

	u, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, u)
}

func (h *Handler) Me(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	h.respondUser(c, actor.ID)
}

func (h *Handler) GetUser(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	// Doctors can see any patient they might treat.
	if !actor.Is(model.UserRoleDoctor) {
		if err := handler.SelfOrAdmin(actor, c.Param("id")); err != nil {
			handler.Fail(c, err)
			return
		}
	}
	h.respondUser(c, c.Param("id"))
}

func (h *Handler) respondUser(c *gin.Context, id string) {
	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, u)
}

func (h *Handler) ListPending(c *gin.Context) {
	users, err := h.service.ListPending(c.Request.Context())
	h.list(c, users, err)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	users, err := h.service.ListDoctors(c.Request.Context(), c.Query("department"))
	h.list(c, users, err)
}

func (h *Handler) ListAdmitted(c *gin.Context) {
	users, err := h.service.ListAdmitted(c.Request.Context())
	h.list(c, users, err)
}

func (h *Handler) list(c *gin.Context, users []*model.User, err error) {
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, users)
}

func (h *Handler) Approve(c *gin.Context) {
	u, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, u)
}

func (h *Handler) Reject(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Reject(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	if h.sessions != nil {
		h.sessions.Forget(id)
	}
	handler.OK(c, gin.H{"id": id, "deleted": true})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, stats)
}
