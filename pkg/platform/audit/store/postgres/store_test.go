package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycgate/pkg/domain"
	audit "kycgate/pkg/platform/audit"
)

var ts = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func sampleEntry() audit.Entry {
	return audit.Entry{
		ID:        id.NewAuditEntryID(),
		UserID:    id.NewUserID(),
		Action:    audit.ActionKYCSubmitted,
		Timestamp: ts,
		Snapshot:  json.RawMessage(`{"first_name":"Asha"}`),
		Status:    "under_review",
		ActorID:   "self",
		RequestID: "req-1",
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// entryArgs is the column count of insertEntryQuery.
const entryArgs = 12

func TestAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the entry only", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		e := sampleEntry()
		mock.ExpectExec("INSERT INTO audit_entries").
			WithArgs(uuid.UUID(e.ID), uuid.UUID(e.UserID), "kyc_submitted", "compliance", ts,
				[]byte(e.Snapshot), "under_review", (*string)(nil), "self", "req-1", "", "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, New(mock).Append(ctx, e))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("queues an outbox row when enabled", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		e := sampleEntry()
		mock.ExpectExec("INSERT INTO audit_entries").
			WithArgs(anyArgs(entryArgs)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO audit_outbox").
			WithArgs(pgxmock.AnyArg(), e.UserID.String(), "kyc_submitted", pgxmock.AnyArg(), ts).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, New(mock, WithOutbox()).Append(ctx, e))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces insert failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO audit_entries").
			WithArgs(anyArgs(entryArgs)...).
			WillReturnError(assert.AnError)
		err = New(mock, WithOutbox()).Append(ctx, sampleEntry())
		assert.ErrorIs(t, err, assert.AnError)
		require.NoError(t, mock.ExpectationsWereMet(), "no outbox row after a failed entry insert")
	})
}

func TestListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := id.NewUserID()
	notes := "missing address proof"
	rows := pgxmock.NewRows([]string{"id", "user_id", "action", "timestamp", "snapshot", "status",
		"reviewer_notes", "actor_id", "request_id", "client_ip", "device"}).
		AddRow(uuid.New(), uuid.UUID(userID), "kyc_submitted", ts, []byte(`{"city":"Pune"}`), "under_review", (*string)(nil), "self", "r1", "", "").
		AddRow(uuid.New(), uuid.UUID(userID), "status_updated", ts, []byte(nil), "incomplete", &notes, "admin", "r2", "", "")

	mock.ExpectQuery(`FROM audit_entries\s+WHERE user_id = \$1\s+ORDER BY timestamp ASC, seq ASC`).
		WithArgs(uuid.UUID(userID)).
		WillReturnRows(rows)

	entries, err := New(mock).ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionKYCSubmitted, entries[0].Action)
	assert.JSONEq(t, `{"city":"Pune"}`, string(entries[0].Snapshot))
	assert.Equal(t, audit.ActionStatusUpdated, entries[1].Action)
	assert.Equal(t, notes, *entries[1].ReviewerNotes)
	assert.Nil(t, entries[1].Snapshot)
}
