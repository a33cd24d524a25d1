package models

import (
	"time"

	dErrors "kycgate/pkg/domain-errors"
)

// Profile is the KYC state embedded in a user record.
// Verified is true exactly when Status is approved.
type Profile struct {
	Status   Status `json:"kyc_status"`
	Verified bool   `json:"is_kyc_verified"`
	Data     *Data  `json:"kyc_data,omitempty"`
}

// NewProfile returns the profile of a freshly registered user.
func NewProfile() Profile {
	return Profile{Status: StatusPending}
}

// CanSubmit reports whether a new submission is allowed from the current status.
func (p *Profile) CanSubmit() error {
	if !CanTransition(p.Status, StatusUnderReview, TriggerSubmission) {
		return dErrors.New(dErrors.CodeInvalidState, "kyc cannot be submitted from status "+p.Status.String())
	}
	return nil
}

// ApplySubmission replaces the profile data with data and moves it under review.
// Documents already on file are kept; documents in data are ignored.
func (p *Profile) ApplySubmission(data Data, now time.Time) error {
	if err := p.CanSubmit(); err != nil {
		return err
	}
	submittedAt := now
	data.Documents = p.Documents()
	data.Status = StatusUnderReview
	data.SubmittedAt = &submittedAt
	data.ReviewedAt = nil
	data.ReviewerNotes = nil

	p.Data = &data
	p.Status = StatusUnderReview
	p.Verified = false
	return nil
}

// CanReview reports whether an administrator may move the profile to status.
func (p *Profile) CanReview(status Status) error {
	if !status.IsReviewOutcome() {
		return dErrors.New(dErrors.CodeValidation, "review status must be approved, rejected or incomplete")
	}
	if !CanTransition(p.Status, status, TriggerReview) {
		return dErrors.New(dErrors.CodeInvalidState,
			"kyc cannot move from "+p.Status.String()+" to "+status.String())
	}
	return nil
}

// ApplyReview records a review outcome. Notes replace earlier notes only when given.
func (p *Profile) ApplyReview(status Status, notes *string, now time.Time) error {
	if err := p.CanReview(status); err != nil {
		return err
	}
	if p.Data == nil {
		p.Data = &Data{Documents: []Document{}}
	}
	reviewedAt := now
	p.Data.Status = status
	p.Data.ReviewedAt = &reviewedAt
	if notes != nil {
		n := *notes
		p.Data.ReviewerNotes = &n
	}
	p.Status = status
	p.Verified = status == StatusApproved
	return nil
}

// AppendDocument adds doc regardless of status. Upload is allowed before the
// first submission.
func (p *Profile) AppendDocument(doc Document) {
	if p.Data == nil {
		p.Data = &Data{Status: p.Status, Documents: []Document{}}
	}
	p.Data.Documents = append(p.Data.Documents, doc)
}

// Documents returns a copy of the documents on file, never nil.
func (p *Profile) Documents() []Document {
	if p.Data == nil {
		return []Document{}
	}
	out := make([]Document, len(p.Data.Documents))
	copy(out, p.Data.Documents)
	return out
}
