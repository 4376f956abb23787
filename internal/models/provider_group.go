package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderGroup groups providers and users inside one customer.
type ProviderGroup struct {
	ID          uuid.UUID `json:"id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProviderGroupListItem is a provider group with dependent counts.
type ProviderGroupListItem struct {
	ProviderGroup
	CustomerName string `json:"customer_name,omitempty"`
	Providers    int    `json:"providers"`
	Users        int    `json:"users"`
}
