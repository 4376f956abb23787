package access

import (
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
)

// Require returns nil when p holds at least one of roles, an Unauthenticated error when
// there is no principal and a Forbidden error otherwise.
func Require(p *Principal, roles ...models.Role) error {
	if p == nil {
		return apperr.Unauthenticated("authentication required")
	}
	if !p.HasRole(roles...) {
		return apperr.Forbidden("insufficient permissions")
	}
	return nil
}
