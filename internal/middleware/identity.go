package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/pkg/response"
)

// PrincipalLoader resolves a user id into a Principal. Implementations return an
// Unauthenticated apperr for missing or inactive users.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (*access.Principal, error)
}

// Identity loads the caller's Principal after JWT and stores it in context.
func Identity(loader PrincipalLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		p, err := loader.LoadPrincipal(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, logger, err, nil)
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

// GetPrincipal returns the Principal stored by Identity, or nil.
func GetPrincipal(c *gin.Context) *access.Principal {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*access.Principal)
	return p
}
