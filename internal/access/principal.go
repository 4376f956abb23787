// Package access holds the portal's authorization core: the resolved principal, the
// role gate and the role-scoped filters applied to every list, detail and mutation.
package access

import (
	"slices"

	"github.com/google/uuid"

	"github.com/provider-portal/backend/internal/models"
)

// Principal is the authenticated caller with everything scoping needs.
type Principal struct {
	UserID          uuid.UUID
	Name            string
	Email           string
	Roles           []models.Role
	CustomerID      *uuid.UUID
	ProviderGroupID *uuid.UUID
	ProviderIDs     []uuid.UUID // NPI assignments
}

// Role returns the principal's most privileged role.
func (p *Principal) Role() models.Role {
	return models.PrimaryRole(p.Roles)
}

// HasRole reports whether the principal holds any of roles.
func (p *Principal) HasRole(roles ...models.Role) bool {
	return slices.ContainsFunc(roles, func(r models.Role) bool { return slices.Contains(p.Roles, r) })
}

// IsSystemAdmin reports whether the principal bypasses customer scoping.
func (p *Principal) IsSystemAdmin() bool {
	return p.Role() == models.RoleSystemAdmin
}

// AssignedTo reports whether providerID is in the principal's assignment set.
func (p *Principal) AssignedTo(providerID uuid.UUID) bool {
	return slices.Contains(p.ProviderIDs, providerID)
}

// InCustomer reports whether the principal belongs to customerID.
func (p *Principal) InCustomer(customerID uuid.UUID) bool {
	return p.CustomerID != nil && *p.CustomerID == customerID
}

// InProviderGroup reports whether the principal belongs to groupID.
func (p *Principal) InProviderGroup(groupID *uuid.UUID) bool {
	return p.ProviderGroupID != nil && groupID != nil && *p.ProviderGroupID == *groupID
}
