// Package compliance provides the fail-closed audit publisher.
//
// Emit writes synchronously to the audit store and returns the store error.
// Callers run Emit inside the same unit of work as the state change so a lost
// audit entry rolls the change back.
package compliance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "kycgate/pkg/domain"
	audit "kycgate/pkg/platform/audit"
)

var (
	ErrMissingUserID = errors.New("audit entry requires a user ID")
	ErrMissingAction = errors.New("audit entry requires an action")
)

// Publisher emits audit entries with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists entry, filling in its ID and timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, entry audit.Entry) error {
	start := time.Now()

	if entry.UserID.IsNil() {
		return ErrMissingUserID
	}
	if entry.Action == "" {
		return ErrMissingAction
	}
	if entry.ID == (id.AuditEntryID{}) {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, entry); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", entry.Action,
				"user_id", entry.UserID,
				"error", err,
			)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEntriesEmitted(entry.Action)
	}
	return nil
}

// List returns a user's audit trail in append order.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Entry, error) {
	return p.store.ListByUser(ctx, userID)
}
