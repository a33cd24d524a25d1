package models

import (
	"strings"
	"time"

	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// User is the identity record. KYC state is embedded so a single document
// holds everything the review workflow needs.
type User struct {
	ID           id.UserID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	// Version increments on every KYC write and guards against lost updates.
	Version int64 `json:"-"`

	kyc.Profile
}

// NewUser builds a user in the pending KYC state.
func NewUser(email, passwordHash, fullName string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &User{
		ID:           id.NewUserID(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
		Profile:      kyc.NewProfile(),
	}, nil
}

// NormalizeEmail lowercases and trims so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a deep copy. Stores hand out clones so callers cannot mutate
// stored state without going through an update.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Data != nil {
		data := *u.Data
		data.Documents = u.Documents()
		if u.Data.SubmittedAt != nil {
			t := *u.Data.SubmittedAt
			data.SubmittedAt = &t
		}
		if u.Data.ReviewedAt != nil {
			t := *u.Data.ReviewedAt
			data.ReviewedAt = &t
		}
		if u.Data.ReviewerNotes != nil {
			n := *u.Data.ReviewerNotes
			data.ReviewerNotes = &n
		}
		c.Data = &data
	}
	return &c
}
