package sentinel

import "errors"

// Infrastructure facts returned by stores and lockers, optionally wrapped.
// Services translate them into domain errors with errors.Is; they never reach
// handlers directly.
//
// Input problems (bad fields, unknown enum values) belong in pkg/domain-errors.
var (
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a uniqueness violation such as a duplicate email.
	ErrConflict = errors.New("conflict")
	// ErrVersionConflict signals that a record changed between read and write.
	ErrVersionConflict = errors.New("version conflict")
	// ErrLocked signals that another request holds the per-user lock.
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
