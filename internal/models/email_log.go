package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the portal.
const (
	EmailTypeTemporaryPassword   = "temporary_password"
	EmailTypeRegistration        = "registration"
	EmailTypeSubmissionSubmitted = "submission_submitted"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records an outgoing notification and its delivery outcome.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	CustomerID     *uuid.UUID `json:"customer_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
