// Package audit defines the append-only KYC audit trail.
//
// Entries are written synchronously inside the same unit of work as the state
// change they describe. A failed write fails the operation.
package audit

import (
	"context"
	"encoding/json"
	"time"

	id "kycgate/pkg/domain"
)

// Action tags what happened to a user's KYC record.
type Action string

const (
	ActionKYCSubmitted     Action = "kyc_submitted"
	ActionStatusUpdated    Action = "status_updated"
	ActionDocumentUploaded Action = "document_uploaded"
)

// EventCategory classifies actions for retention and routing.
type EventCategory string

const (
	// CategoryCompliance entries carry regulatory weight and are kept for the
	// full retention period.
	CategoryCompliance EventCategory = "compliance"
	CategoryOperations EventCategory = "operations"
)

var actionCategories = map[Action]EventCategory{
	ActionKYCSubmitted:     CategoryCompliance,
	ActionStatusUpdated:    CategoryCompliance,
	ActionDocumentUploaded: CategoryCompliance,
}

// Category returns the category for a, defaulting to operations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Entry is one immutable audit record. Snapshot holds the submitted data for
// kyc_submitted and the document metadata for document_uploaded; Status and
// ReviewerNotes are set for status_updated.
type Entry struct {
	ID            id.AuditEntryID `json:"id"`
	UserID        id.UserID       `json:"user_id"`
	Action        Action          `json:"action"`
	Timestamp     time.Time       `json:"timestamp"`
	Snapshot      json.RawMessage `json:"snapshot,omitempty"`
	Status        string          `json:"status,omitempty"`
	ReviewerNotes *string         `json:"reviewer_notes,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	ClientIP      string          `json:"client_ip,omitempty"`
	Device        string          `json:"device,omitempty"`
}

// Store appends entries and lists them per user in append order.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Entry, error)
}
