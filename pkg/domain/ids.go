// Package domain holds typed identifiers shared across modules.
package domain

import (
	"github.com/google/uuid"

	dErrors "kycgate/pkg/domain-errors"
)

// UserID identifies a registered user.
type UserID uuid.UUID

// AuditEntryID identifies one immutable audit record.
type AuditEntryID uuid.UUID

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id AuditEntryID) String() string { return uuid.UUID(id).String() }

func (id AuditEntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AuditEntryID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = AuditEntryID(u)
	return nil
}

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewAuditEntryID returns a fresh random audit entry ID.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// ParseUserID parses s at a trust boundary. Empty, malformed and nil UUIDs are
// rejected with CodeInvalidInput.
func ParseUserID(s string) (UserID, error) {
	u, err := parseID(s, "user ID")
	return UserID(u), err
}

// ParseAuditEntryID parses s with the same rules as ParseUserID.
func ParseAuditEntryID(s string) (AuditEntryID, error) {
	u, err := parseID(s, "audit entry ID")
	return AuditEntryID(u), err
}

func parseID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
