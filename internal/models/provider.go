package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider is an NPI record owned by a customer.
type Provider struct {
	ID              uuid.UUID  `json:"id"`
	NPI             string     `json:"npi"`
	Name            string     `json:"name"`
	Active          bool       `json:"active"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	ProviderGroupID *uuid.UUID `json:"provider_group_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ProviderListItem is a provider row enriched for tables.
type ProviderListItem struct {
	Provider
	ProviderGroupName string `json:"provider_group_name,omitempty"`
	AssignedUsers     int    `json:"assigned_users"`
}

// UserNpi assigns a provider to a user.
type UserNpi struct {
	UserID     uuid.UUID `json:"user_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidNPI reports whether npi is ten digits with a valid Luhn check digit computed over
// the "80840" health-industry prefix.
func ValidNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	for _, r := range npi {
		if r < '0' || r > '9' {
			return false
		}
	}
	digits := "80840" + npi
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
