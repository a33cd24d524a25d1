package models

import (
	"io"
	"strings"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// ReviewRequest is an administrator's decision on a user's KYC.
type ReviewRequest struct {
	UserID        string  `json:"user_id"`
	NewStatus     string  `json:"new_status"`
	ReviewerNotes *string `json:"reviewer_notes,omitempty"`

	parsedUserID id.UserID
	parsedStatus Status
}

// Validate parses the identifiers and checks that the status is a review outcome.
func (r *ReviewRequest) Validate() error {
	var problems []string
	userID, err := id.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		problems = append(problems, "user_id must be a valid UUID")
	}
	status := Status(strings.TrimSpace(r.NewStatus))
	if !status.IsReviewOutcome() {
		problems = append(problems, "new_status must be one of approved, rejected, incomplete")
	}
	if len(problems) > 0 {
		return dErrors.Validation("invalid status update", problems...)
	}
	if r.ReviewerNotes != nil {
		notes := strings.TrimSpace(*r.ReviewerNotes)
		r.ReviewerNotes = &notes
	}
	r.parsedUserID = userID
	r.parsedStatus = status
	return nil
}

func (r *ReviewRequest) ParsedUserID() id.UserID { return r.parsedUserID }
func (r *ReviewRequest) ParsedStatus() Status    { return r.parsedStatus }

// UploadRequest carries one document. Content is read at most once.
type UploadRequest struct {
	DocumentType   string
	DocumentNumber string
	Filename       string
	Content        io.Reader
}
