package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	authservice "kycgate/internal/auth/service"
	userstore "kycgate/internal/auth/store/user"
	"kycgate/internal/kyc/blob"
	kycservice "kycgate/internal/kyc/service"
	"kycgate/internal/platform/config"
	platformmongo "kycgate/internal/platform/mongo"
	"kycgate/internal/platform/postgres"
	"kycgate/migrations"
	"kycgate/pkg/platform/audit"
	auditmemory "kycgate/pkg/platform/audit/store/memory"
	auditmongo "kycgate/pkg/platform/audit/store/mongo"
	auditpostgres "kycgate/pkg/platform/audit/store/postgres"
	"kycgate/pkg/platform/tx"
)

// userRepository is what both services need from the user store.
type userRepository interface {
	authservice.UserStore
	kycservice.UserStore
}

type backends struct {
	users userRepository
	audit audit.Store
	tx    tx.Runner
	blobs kycservice.BlobStore

	pool    *pgxpool.Pool
	mongoDB *mongo.Database
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger, a *App) (*backends, error) {
	b := &backends{tx: &tx.Serial{}}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if cfg.Postgres.AutoMigrate {
			results, err := postgres.Migrate(ctx, cfg.Postgres.DSN, migrations.FS)
			if err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.InfoContext(ctx, "database migrated", "applied", len(results))
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.onClose(pool.Close)
		a.addCheck("postgres", pool.Ping)

		var opts []auditpostgres.Option
		if len(cfg.Kafka.Brokers) > 0 {
			opts = append(opts, auditpostgres.WithOutbox())
		}
		b.pool = pool
		b.users = userstore.NewPostgres(pool)
		b.audit = auditpostgres.New(pool, opts...)
		b.tx = tx.NewPgxRunner(pool)

	case config.BackendMongo:
		client, db, err := platformmongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = client.Disconnect(context.Background()) })
		a.addCheck("mongo", func(ctx context.Context) error { return client.Ping(ctx, nil) })

		users := userstore.NewMongo(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo user indexes: %w", err)
		}
		entries := auditmongo.New(db)
		if err := entries.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo audit indexes: %w", err)
		}
		b.mongoDB = db
		b.users = users
		b.audit = entries

	default:
		b.users = userstore.New()
		b.audit = auditmemory.NewInMemoryStore()
	}

	switch cfg.Documents.Backend {
	case config.DocumentsGridFS:
		b.blobs = blob.NewGridFSStore(b.mongoDB)
	case config.DocumentsMemory:
		b.blobs = blob.NewMemoryStore()
	default:
		fsStore, err := blob.NewFSStore(cfg.Documents.Dir)
		if err != nil {
			return nil, err
		}
		b.blobs = fsStore
	}
	return b, nil
}
