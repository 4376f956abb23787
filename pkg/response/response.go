package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool               `json:"success"`
	Data    interface{}        `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
	Fields  apperr.FieldErrors `json:"fields,omitempty"`
	Values  interface{}        `json:"values,omitempty"` // echoed form input for re-render
	Toast   *Toast             `json:"toast,omitempty"`
}

// Toast is a user-facing notification message.
type Toast struct {
	Type    string `json:"type"` // success | error
	Message string `json:"message"`
}

// ActionResult is returned by intent actions.
type ActionResult struct {
	RedirectTo string      `json:"redirect_to,omitempty"`
	Toast      Toast       `json:"toast"`
	Record     interface{} `json:"record,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Action sends a successful action result with a success toast.
func Action(c *gin.Context, redirectTo, message string, record interface{}) {
	OK(c, ActionResult{
		RedirectTo: redirectTo,
		Toast:      Toast{Type: "success", Message: message},
		Record:     record,
	})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// NotFound sends 404. It also serves unmatched routes.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503 when a dependency is down.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500 with a generic message. Used after a recovered panic.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error translates an application error into a response. values is echoed back on
// validation failures so the caller can re-render its form. Internal errors are logged
// and replaced with a generic message.
func Error(c *gin.Context, logger *zap.Logger, err error, values interface{}) {
	e := apperr.From(err)
	body := Body{Success: false, Error: e.Message}
	switch e.Kind {
	case apperr.KindValidation:
		body.Fields = e.Fields
		body.Values = values
	case apperr.KindInvariant:
		body.Toast = &Toast{Type: "error", Message: e.Message}
	case apperr.KindInternal:
		if logger != nil {
			logger.Error(e.Message, zap.Error(e.Err), zap.String("path", c.Request.URL.Path))
		}
		body.Error = "internal error"
	}
	c.JSON(e.Status(), body)
}
