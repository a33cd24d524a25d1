package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	id "kycgate/pkg/domain"
	audit "kycgate/pkg/platform/audit"
	txcontext "kycgate/pkg/platform/tx"
)

// DB is the subset of pgx used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store writes entries to audit_entries. With the outbox enabled every entry
// is also queued in audit_outbox within the same transaction for the relay to
// publish.
type Store struct {
	db     DB
	outbox bool
}

type Option func(*Store)

// WithOutbox queues each appended entry for stream publication.
func WithOutbox() Option {
	return func(s *Store) { s.outbox = true }
}

func New(db DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) execer(ctx context.Context) DB {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const insertEntryQuery = `
INSERT INTO audit_entries (
    id, user_id, action, category, timestamp, snapshot,
    status, reviewer_notes, actor_id, request_id, client_ip, device
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const insertOutboxQuery = `
INSERT INTO audit_outbox (id, aggregate_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

// Append inserts the entry, and its outbox row when enabled. Callers that need
// both rows to commit together run Append inside a transaction.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	q := s.execer(ctx)
	var snapshot []byte
	if len(entry.Snapshot) > 0 {
		snapshot = entry.Snapshot
	}
	_, err := q.Exec(ctx, insertEntryQuery,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.UserID),
		string(entry.Action),
		string(entry.Action.Category()),
		entry.Timestamp,
		snapshot,
		entry.Status,
		entry.ReviewerNotes,
		entry.ActorID,
		entry.RequestID,
		entry.ClientIP,
		entry.Device,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	if !s.outbox {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	if _, err := q.Exec(ctx, insertOutboxQuery,
		uuid.New(),
		entry.UserID.String(),
		string(entry.Action),
		payload,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const listByUserQuery = `
SELECT id, user_id, action, timestamp, snapshot, status, reviewer_notes,
       actor_id, request_id, client_ip, device
FROM audit_entries
WHERE user_id = $1
ORDER BY timestamp ASC, seq ASC`

// ListByUser returns the user's entries oldest first. Entries sharing a
// timestamp come back in insertion order.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Entry, error) {
	rows, err := s.execer(ctx).Query(ctx, listByUserQuery, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			e        audit.Entry
			entryID  uuid.UUID
			ownerID  uuid.UUID
			action   string
			snapshot []byte
		)
		if err := rows.Scan(&entryID, &ownerID, &action, &e.Timestamp, &snapshot, &e.Status,
			&e.ReviewerNotes, &e.ActorID, &e.RequestID, &e.ClientIP, &e.Device); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.AuditEntryID(entryID)
		e.UserID = id.UserID(ownerID)
		e.Action = audit.Action(action)
		if len(snapshot) > 0 {
			e.Snapshot = json.RawMessage(snapshot)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
