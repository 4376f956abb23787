package emaillogs

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/middleware"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/email-logs. Customer admins see their customer's logs only.
func (h *Handler) List(c *gin.Context) {
	f, err := access.ScopeFor(middleware.GetPrincipal(c), access.EmailLogs)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	logs, err := h.repo.List(c.Request.Context(), f, middleware.ListParams(c))
	if err != nil {
		response.Error(c, h.logger, apperr.Internal("list email logs", err), nil)
		return
	}
	response.OK(c, logs)
}
