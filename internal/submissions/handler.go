package submissions

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/middleware"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/form"
	"github.com/provider-portal/backend/pkg/response"
)

// Intents accepted by POST /submissions.
const (
	IntentCreate    = "create"
	IntentUpdate    = "update"
	IntentSubmit    = "submit"
	IntentDelete    = "delete"
	IntentSetStatus = "set-status"
)

// Handler handles submission and document endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a submissions handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /submissions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.GetPrincipal(c), middleware.ListParams(c))
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, list)
}

// Get handles GET /submissions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := middleware.ParamUUID(c, "id", msgNotFound)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	sub, err := h.svc.Get(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, sub)
}

// Action handles POST /submissions.
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
	case IntentSubmit, IntentDelete:
		var in IDInput
		values = &in
		if err = form.Bind(c, &in); err != nil {
			break
		}
		if intent == IntentSubmit {
			res, err = h.svc.Submit(ctx, p, in)
		} else {
			res, err = h.svc.Delete(ctx, p, in)
		}
	case IntentSetStatus:
		var in StatusInput
		values = &in
		if err = form.Bind(c, &in); err == nil {
			res, err = h.svc.SetStatus(ctx, p, in)
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

// UploadDocument handles POST /submissions/:id/documents with a multipart "file".
func (h *Handler) UploadDocument(c *gin.Context) {
	id, err := middleware.ParamUUID(c, "id", msgNotFound)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, h.logger, apperr.Field("file", "File is required"), nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, h.logger, apperr.Internal("open upload", err), nil)
		return
	}
	defer f.Close()

	res, err := h.svc.AddDocument(c.Request.Context(), middleware.GetPrincipal(c), id, Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, res)
}

// DeleteDocument handles DELETE /submissions/:id/documents/:documentId.
func (h *Handler) DeleteDocument(c *gin.Context) {
	id, err := middleware.ParamUUID(c, "id", msgNotFound)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	docID, err := middleware.ParamUUID(c, "documentId", msgDocumentNotFound)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	res, err := h.svc.RemoveDocument(c.Request.Context(), middleware.GetPrincipal(c), id, docID)
	if err != nil {
		response.Error(c, h.logger, err, nil)
		return
	}
	response.OK(c, res)
}
