package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a portal account scoped to a customer (except system admins).
type User struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	Password           string     `json:"-"`
	MustChangePassword bool       `json:"must_change_password"`
	Active             bool       `json:"active"`
	Roles              []Role     `json:"roles"`
	CustomerID         *uuid.UUID `json:"customer_id,omitempty"`
	ProviderGroupID    *uuid.UUID `json:"provider_group_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PrimaryRole returns the user's most privileged role.
func (u *User) PrimaryRole() Role {
	return PrimaryRole(u.Roles)
}

// UserListItem is a user row enriched for admin tables.
type UserListItem struct {
	User
	CustomerName      string `json:"customer_name,omitempty"`
	ProviderGroupName string `json:"provider_group_name,omitempty"`
	AssignedNPIs      int    `json:"assigned_npis"`
}

// UserDetail is a user with its assigned providers.
type UserDetail struct {
	User
	Providers []Provider `json:"providers"`
}
