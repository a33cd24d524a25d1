package models

import "time"

// SubmitResult is returned for an accepted submission. Rejected submissions
// surface as validation errors instead.
type SubmitResult struct {
	Accepted    bool      `json:"accepted"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StatusView is the read model for a user's KYC state.
type StatusView struct {
	Status   Status `json:"status"`
	Verified bool   `json:"is_kyc_verified"`
	Data     *Data  `json:"kyc_data"`
}

// UploadResult describes a stored document.
type UploadResult struct {
	StoredName string   `json:"stored_name"`
	Document   Document `json:"document"`
}

// ReviewCandidate is a user awaiting review as shown to administrators.
// Identifiers are masked and no credential material is included.
type ReviewCandidate struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"kyc_status"`
	Verified  bool      `json:"is_kyc_verified"`
	Data      *Data     `json:"kyc_data,omitempty"`
	Risk      Risk      `json:"risk"`
}
