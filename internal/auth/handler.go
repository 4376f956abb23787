package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/form"
	"github.com/provider-portal/backend/pkg/response"
)

// LoginRequest is the body for POST /auth/login. Login is an email or a username.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body for POST /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
	Role  models.Role  `json:"role"`
}

// PrincipalFunc extracts the caller from the request context.
type PrincipalFunc func(c *gin.Context) *access.Principal

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc       *Service
	principal PrincipalFunc
	logger    *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, principal PrincipalFunc, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, principal: principal, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := form.Bind(c, &req); err != nil {
		response.Error(c, h.logger, err, gin.H{"login": req.Login})
		return
	}
	token, user, err := h.svc.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		response.Error(c, h.logger, err, gin.H{"login": req.Login})
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user, Role: user.PrimaryRole()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), h.principal(c))
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, gin.H{"user": user, "role": user.PrimaryRole()})
}

// ChangePassword handles POST /auth/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := form.Bind(c, &req); err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), h.principal(c), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.Action(c, "/", "Password updated", nil)
}
