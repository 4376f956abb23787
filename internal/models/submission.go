package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionDraft      SubmissionStatus = "DRAFT"
	SubmissionSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionProcessing SubmissionStatus = "PROCESSING"
	SubmissionCompleted  SubmissionStatus = "COMPLETED"
	SubmissionRejected   SubmissionStatus = "REJECTED"
	SubmissionError      SubmissionStatus = "ERROR"
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionDraft:      {SubmissionSubmitted},
	SubmissionSubmitted:  {SubmissionProcessing},
	SubmissionProcessing: {SubmissionCompleted, SubmissionRejected, SubmissionError},
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionDraft, SubmissionSubmitted, SubmissionProcessing,
		SubmissionCompleted, SubmissionRejected, SubmissionError:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	return slices.Contains(submissionTransitions[s], next)
}

// Editable reports whether documents, fields and deletion are allowed.
func (s SubmissionStatus) Editable() bool {
	return s == SubmissionDraft
}

// Purpose is the reason a submission is sent.
type Purpose string

const (
	PurposeADRResponse        Purpose = "ADR_RESPONSE"
	PurposePriorAuthorization Purpose = "PRIOR_AUTHORIZATION"
	PurposeFirstLevelAppeal   Purpose = "FIRST_LEVEL_APPEAL"
	PurposeSecondLevelAppeal  Purpose = "SECOND_LEVEL_APPEAL"
	PurposePaymentDispute     Purpose = "PAYMENT_DISPUTE"
	PurposeOther              Purpose = "OTHER"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeADRResponse, PurposePriorAuthorization, PurposeFirstLevelAppeal,
		PurposeSecondLevelAppeal, PurposePaymentDispute, PurposeOther:
		return true
	}
	return false
}

// Submission is documentation sent on behalf of one provider.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Purpose     Purpose          `json:"purpose"`
	Status      SubmissionStatus `json:"status"`
	CustomerID  uuid.UUID        `json:"customer_id"`
	ProviderID  uuid.UUID        `json:"provider_id"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SubmissionListItem is a submission row with provider info.
type SubmissionListItem struct {
	Submission
	NPI             string     `json:"npi"`
	ProviderName    string     `json:"provider_name"`
	ProviderGroupID *uuid.UUID `json:"provider_group_id,omitempty"`
	DocumentCount   int        `json:"document_count"`
}

// Document is a file attached to a submission.
type Document struct {
	ID           uuid.UUID `json:"id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	S3Key        string    `json:"-"`
	UploadedBy   uuid.UUID `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
	DownloadURL  string    `json:"download_url,omitempty"`
}

// SubmissionDetail is a submission with provider info and documents.
type SubmissionDetail struct {
	SubmissionListItem
	Documents []Document `json:"documents"`
}
