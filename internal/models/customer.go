package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a tenant organization.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BAANumber *string   `json:"baa_number,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerCounts holds the dependents of a customer.
type CustomerCounts struct {
	ProviderGroups int `json:"provider_groups"`
	Providers      int `json:"providers"`
	Admins         int `json:"admins"`
	Users          int `json:"users"` // excluding customer admins
	Submissions    int `json:"submissions"`
}

// CustomerDetail is a customer with its dependent counts.
type CustomerDetail struct {
	Customer
	Counts CustomerCounts `json:"counts"`
}

// CustomerListItem is a customer row enriched for admin tables.
type CustomerListItem struct {
	Customer
	Users     int `json:"users"`
	Providers int `json:"providers"`
}
