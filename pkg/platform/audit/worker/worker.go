// Package worker relays queued audit entries from the Postgres outbox to the
// audit stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	txcontext "kycgate/pkg/platform/tx"
)

// Producer publishes one record to the audit stream.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// DB is the pgx surface the relay needs. Queries run on the transaction the
// runner places in ctx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Worker polls audit_outbox and publishes unpublished rows in creation order.
// A row is marked published only after the producer acknowledges it, so
// delivery is at-least-once.
type Worker struct {
	db       DB
	runner   txcontext.Runner
	producer Producer
	logger   *slog.Logger
	batch    int
	interval time.Duration
}

type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batch = n }
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func NewWorker(db DB, runner txcontext.Runner, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		db:       db,
		runner:   runner,
		producer: producer,
		logger:   slog.Default(),
		batch:    100,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run flushes on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.Flush(ctx)
			if err != nil {
				w.logger.WarnContext(ctx, "audit outbox flush failed", "error", err)
				continue
			}
			if n > 0 {
				w.logger.DebugContext(ctx, "audit outbox flushed", "published", n)
			}
		}
	}
}

const claimQuery = `
SELECT id, aggregate_id, payload
FROM audit_outbox
WHERE published_at IS NULL
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

const markPublishedQuery = `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`

type outboxRow struct {
	id      uuid.UUID
	key     string
	payload []byte
}

// Flush publishes one batch and returns how many rows it marked published.
// Rows published before a producer failure are still marked and the producer
// error is returned.
func (w *Worker) Flush(ctx context.Context) (int, error) {
	var (
		published  int
		publishErr error
	)
	err := w.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := w.querier(ctx)
		rows, err := q.Query(ctx, claimQuery, w.batch)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outboxRow, error) {
			var r outboxRow
			err := row.Scan(&r.id, &r.key, &r.payload)
			return r, err
		})
		if err != nil {
			return fmt.Errorf("scan outbox rows: %w", err)
		}

		done := make([]uuid.UUID, 0, len(claimed))
		for _, r := range claimed {
			if publishErr = w.producer.Publish(ctx, r.key, r.payload); publishErr != nil {
				break
			}
			done = append(done, r.id)
		}
		if len(done) > 0 {
			if _, err := q.Exec(ctx, markPublishedQuery, time.Now(), done); err != nil {
				return fmt.Errorf("mark outbox rows published: %w", err)
			}
		}
		published = len(done)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if publishErr != nil {
		return published, fmt.Errorf("publish audit entry: %w", publishErr)
	}
	return published, nil
}

func (w *Worker) querier(ctx context.Context) DB {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return w.db
}
