package providergroups

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/middleware"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/form"
	"github.com/provider-portal/backend/pkg/response"
)

// Intents accepted by POST /admin/provider-groups.
const (
	IntentCreate = "create"
	IntentUpdate = "update"
	IntentDelete = "delete"
)

// Handler handles provider group HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a provider groups handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /admin/provider-groups.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.GetPrincipal(c), middleware.ListParams(c))
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/provider-groups/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := middleware.ParamUUID(c, "id", msgNotFound)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	g, err := h.svc.Get(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, g)
}

// Action handles POST /admin/provider-groups.
func (h *Handler) Action(c *gin.Context) {
	intent, err := form.Intent(c)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	ctx := c.Request.Context()
	p := middleware.GetPrincipal(c)
	var (
		res    *response.ActionResult
		values interface{}
	)
	switch intent {
	case IntentCreate:
		var in CreateInput
		values = &in
		if err = form.Bind(c, &in); err == nil {
			res, err = h.svc.Create(ctx, p, in)
		}
	case IntentUpdate:
		var in UpdateInput
		values = &in
		if err = form.Bind(c, &in); err == nil {
			res, err = h.svc.Update(ctx, p, in)
		}
	case IntentDelete:
		var in DeleteInput
		values = &in
		if err = form.Bind(c, &in); err == nil {
			res, err = h.svc.Delete(ctx, p, in)
		}
	default:
		err = apperr.Field("intent", "Unknown intent")
	}
	if err != nil {
		response.Error(c, h.logger, err, values)
		return
	}
	response.OK(c, res)
}
