package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/pkg/response"
)

// Recovery turns a panic into a logged 500 envelope.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		response.Internal(c, "internal error")
		c.Abort()
	})
}

// NoRoute answers unmatched paths with the JSON envelope.
func NoRoute(c *gin.Context) {
	response.NotFound(c, "route not found")
}
