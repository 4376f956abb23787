package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/pkg/apperr"
)

// ListParams reads ?q=, ?page= and ?page_size= for scoped list loaders.
func ListParams(c *gin.Context) access.ListParams {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return access.ListParams{
		Search: c.Query("q"),
		Page:   access.NewPage(page, size),
	}
}

// ParamUUID parses a path parameter. Malformed ids are reported as not found.
func ParamUUID(c *gin.Context, name, notFound string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.NotFound(notFound)
	}
	return id, nil
}
