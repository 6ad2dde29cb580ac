package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/supreset/identity/internal/api"
)

// Snapshotter reads the current value of the service counters.
type Snapshotter interface {
	Snapshot(ctx context.Context) (any, error)
}

type Handler struct {
	service    *Service
	middleware *Middleware
	snapshots  Snapshotter
	log        *zap.Logger
	exposure   errorExposure
}

func NewHandler(service *Service, middleware *Middleware, snapshots Snapshotter, log *zap.Logger, exposeInternal bool) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		snapshots:  snapshots,
		log:        log,
		exposure:   errorExposure(exposeInternal),
	}
}

// Mount registers the identity routes on r.
func (h *Handler) Mount(r gin.IRouter) {
	r.POST(api.AuthLogin, h.Login)
	r.POST(api.AuthSendCode, h.SendCode)
	r.POST(api.AuthRegister, h.middleware.OptionalAuth(), h.Register)

	authed := r.Group("", h.middleware.RequireAuth())
	authed.POST(api.AuthChangePassword, h.ChangePassword)
	authed.GET(api.AuthMe, h.Me)
	authed.POST(api.AuthLogout, h.Logout)

	admin := authed.Group("", h.middleware.RequireAdmin())
	admin.POST(api.Users, h.CreateUser)
	admin.GET(api.AdminMetrics, h.Metrics)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.exposure.respond(c, h.log, "login", validationError(MsgCredentialsRequired))
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Credentials())
	if err != nil {
		h.exposure.respond(c, h.log, "login", err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, Data: result})
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

func (h *Handler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.exposure.respond(c, h.log, "send code", validationError(MsgInvalidEmail))
		return
	}

	if err := h.service.SendCode(c.Request.Context(), req.Email); err != nil {
		h.exposure.respond(c, h.log, "send code", err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, Message: "verification code sent"})
}

// Register answers public sign-up attempts; accounts are created by
// administrators only.
func (h *Handler) Register(c *gin.Context) {
	if claims, ok := CurrentClaims(c); ok {
		h.log.Info("signed-in caller hit registration", zap.Int64("user_id", claims.ID))
	}
	h.exposure.respond(c, h.log, "register", authorizationError("", MsgRegistrationClosed))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	claims, _ := CurrentClaims(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.exposure.respond(c, h.log, "change password", validationError(MsgPasswordsRequired))
		return
	}

	user, token, err := h.service.ChangePassword(c.Request.Context(), claims.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.exposure.respond(c, h.log, "change password", err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, Data: user, Token: token, Message: "password changed"})
}

func (h *Handler) Me(c *gin.Context) {
	claims, _ := CurrentClaims(c)

	profile, err := h.service.CurrentUser(c.Request.Context(), claims.ID)
	if err != nil {
		h.exposure.respond(c, h.log, "get current user", err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, Data: profile})
}

func (h *Handler) Logout(c *gin.Context) {
	claims, _ := CurrentClaims(c)

	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		h.exposure.respond(c, h.log, "logout", err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, Message: "logged out"})
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req NewUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.exposure.respond(c, h.log, "create user", validationError(MsgNameRequired))
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.exposure.respond(c, h.log, "create user", err)
		return
	}

	c.JSON(http.StatusCreated, envelope{Success: true, Data: user})
}

func (h *Handler) Metrics(c *gin.Context) {
	snapshot, err := h.snapshots.Snapshot(c.Request.Context())
	if err != nil {
		h.exposure.respond(c, h.log, "read metrics", err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, Data: snapshot})
}
