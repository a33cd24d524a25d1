package tx

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Runner executes fn as one unit of work. Stores called with the ctx passed to
// fn participate in the same transaction when the backend supports one.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Serial runs units of work one at a time. It backs stores without
// multi-document transactions and cannot roll back partial writes.
type Serial struct {
	mu sync.Mutex
}

func (s *Serial) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

// Beginner starts pgx transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgxRunner wraps fn in a Postgres transaction. Nested calls reuse the
// transaction already in ctx.
type PgxRunner struct {
	db Beginner
}

func NewPgxRunner(db Beginner) *PgxRunner {
	return &PgxRunner{db: db}
}

func (r *PgxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	t, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = t.Rollback(ctx)
		}
	}()

	if err = fn(WithTx(ctx, t)); err != nil {
		return err
	}
	if err = t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
