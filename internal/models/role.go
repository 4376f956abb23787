package models

import "slices"

// Role is one of the portal's closed set of user roles.
type Role string

const (
	RoleSystemAdmin        Role = "system-admin"
	RoleCustomerAdmin      Role = "customer-admin"
	RoleProviderGroupAdmin Role = "provider-group-admin"
	RoleBasicUser          Role = "basic-user"
)

// Roles lists every role, most privileged first.
var Roles = []Role{RoleSystemAdmin, RoleCustomerAdmin, RoleProviderGroupAdmin, RoleBasicUser}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Rank orders roles by privilege; lower is more privileged. Unknown roles rank last.
func (r Role) Rank() int {
	if i := slices.Index(Roles, r); i >= 0 {
		return i
	}
	return len(Roles)
}

// Label returns the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleSystemAdmin:
		return "System Admin"
	case RoleCustomerAdmin:
		return "Customer Admin"
	case RoleProviderGroupAdmin:
		return "Provider Group Admin"
	case RoleBasicUser:
		return "Basic User"
	}
	return string(r)
}

// PrimaryRole returns the most privileged valid role in roles, or "" when none.
func PrimaryRole(roles []Role) Role {
	var best Role
	for _, r := range roles {
		if !r.Valid() {
			continue
		}
		if best == "" || r.Rank() < best.Rank() {
			best = r
		}
	}
	return best
}

// ParseRoles converts stored role names, dropping unknown ones.
func ParseRoles(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		if r := Role(n); r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// RoleNames converts roles to their stored names.
func RoleNames(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
