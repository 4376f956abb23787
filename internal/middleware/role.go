package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/metrics"
	"github.com/provider-portal/backend/pkg/response"
)

// RequireRole returns a middleware that allows only principals holding one of roles.
// m may be nil.
func RequireRole(m *metrics.Metrics, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := access.Require(GetPrincipal(c), roles...)
		if err == nil {
			c.Next()
			return
		}
		if m != nil {
			reason := "forbidden"
			if apperr.Is(err, apperr.KindUnauthenticated) {
				reason = "unauthenticated"
			}
			m.AuthorizationDenied.WithLabelValues(reason).Inc()
		}
		response.Error(c, nil, err, nil)
		c.Abort()
	}
}
