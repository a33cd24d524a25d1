package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kycgate/internal/auth/models"
	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
	txcontext "kycgate/pkg/platform/tx"
)

// DB is the subset of pgx shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

var userColumns = []string{
	"id", "email", "password_hash", "full_name", "created_at", "updated_at",
	"version", "kyc_status", "kyc_verified", "kyc_data",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore stores users in the users table. The KYC profile data is a
// JSONB column so documents can be appended server-side.
type PostgresStore struct {
	db DB
}

func NewPostgres(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) querier(ctx context.Context) DB {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	data, err := marshalData(user.Data)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(uuid.UUID(user.ID), user.Email, user.PasswordHash, user.FullName, user.CreatedAt,
			user.UpdatedAt, user.Version, string(user.Status), user.Verified, data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}
	if _, err := s.querier(ctx).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, sq.Eq{"id": uuid.UUID(userID)})
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, sq.Eq{"email": models.NormalizeEmail(email)})
}

func (s *PostgresStore) findOne(ctx context.Context, where sq.Eq) (*models.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find user: %w", err)
	}
	user, err := scanUser(s.querier(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

const updateKYCQuery = `
UPDATE users
SET kyc_status = $1, kyc_verified = $2, kyc_data = $3, updated_at = $4, version = version + 1
WHERE id = $5 AND version = $6`

func (s *PostgresStore) UpdateKYC(ctx context.Context, user *models.User) error {
	data, err := marshalData(user.Data)
	if err != nil {
		return err
	}
	q := s.querier(ctx)
	tag, err := q.Exec(ctx, updateKYCQuery,
		string(user.Status), user.Verified, data, user.UpdatedAt, uuid.UUID(user.ID), user.Version)
	if err != nil {
		return fmt.Errorf("update user kyc: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, q, user.ID)
	}
	user.Version++
	return nil
}

const appendDocumentQuery = `
UPDATE users
SET kyc_data = jsonb_set(
        COALESCE(kyc_data, jsonb_build_object('status', kyc_status, 'documents', '[]'::jsonb)),
        '{documents}',
        COALESCE(kyc_data->'documents', '[]'::jsonb) || $2::jsonb),
    updated_at = $3,
    version = version + 1
WHERE id = $1`

// AppendDocument appends in a single statement so concurrent uploads never
// overwrite each other.
func (s *PostgresStore) AppendDocument(ctx context.Context, userID id.UserID, doc kyc.Document, now time.Time) error {
	payload, err := json.Marshal([]kyc.Document{doc})
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	tag, err := s.querier(ctx).Exec(ctx, appendDocumentQuery, uuid.UUID(userID), payload, now)
	if err != nil {
		return fmt.Errorf("append document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByKYCStatus(ctx context.Context, statuses ...kyc.Status) ([]*models.User, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(sq.Eq{"kyc_status": values}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users: %w", err)
	}
	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users by kyc status: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *PostgresStore) missingOrStale(ctx context.Context, q DB, userID id.UserID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, uuid.UUID(userID)).Scan(&exists); err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionConflict
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		user   models.User
		rawID  uuid.UUID
		status string
		data   []byte
	)
	if err := row.Scan(&rawID, &user.Email, &user.PasswordHash, &user.FullName, &user.CreatedAt,
		&user.UpdatedAt, &user.Version, &status, &user.Verified, &data); err != nil {
		return nil, err
	}
	user.ID = id.UserID(rawID)
	user.Status = kyc.Status(status)
	if len(data) > 0 {
		var d kyc.Data
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode kyc data: %w", err)
		}
		user.Data = &d
	}
	return &user, nil
}

// marshalData encodes the profile data, or nil for SQL NULL.
func marshalData(d *kyc.Data) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	c := *d
	if c.Documents == nil {
		c.Documents = []kyc.Document{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal kyc data: %w", err)
	}
	return b, nil
}
