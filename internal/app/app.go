// Package app wires configuration, backends and services into a runnable
// HTTP server plus its background workers.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	authhandler "kycgate/internal/auth/handler"
	authservice "kycgate/internal/auth/service"
	jwttoken "kycgate/internal/jwt_token"
	kychandler "kycgate/internal/kyc/handler"
	"kycgate/internal/kyc/lock"
	kycmetrics "kycgate/internal/kyc/metrics"
	"kycgate/internal/kyc/notify"
	kycservice "kycgate/internal/kyc/service"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/httpserver"
	"kycgate/internal/platform/kafka"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/platform/rabbitmq"
	platformredis "kycgate/internal/platform/redis"
	httptransport "kycgate/internal/transport/http"
	"kycgate/pkg/platform/audit/publishers/compliance"
	"kycgate/pkg/platform/audit/worker"
	"kycgate/pkg/platform/tx"
)

// App owns every long-lived resource. Close releases them in reverse order.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	handler http.Handler
	checks  map[string]httptransport.Check
	workers []func(ctx context.Context) error
	closers []func()
}

// New connects to the configured backends and builds the router. On error
// everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *App, err error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		checks: make(map[string]httptransport.Check),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	b, err := openBackends(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.startAuditRelay(ctx, b); err != nil {
		return nil, err
	}

	auditPublisher := compliance.New(b.audit,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)

	accounts := authservice.New(b.users, tokens, int(cfg.Auth.TokenTTL.Seconds()),
		authservice.WithLogger(logger),
		authservice.WithMetrics(metrics.New(reg)),
		authservice.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	kyc := kycservice.New(b.users, auditPublisher, b.blobs, locker,
		kycservice.WithLogger(logger),
		kycservice.WithMetrics(kycmetrics.New(reg)),
		kycservice.WithNotifier(a.newNotifier()),
		kycservice.WithTxRunner(b.tx),
		kycservice.WithMaxDocumentBytes(cfg.Documents.MaxBytes),
	)

	a.handler = httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Accounts:       authhandler.New(accounts, logger),
		KYC:            kychandler.New(kyc, logger, cfg.Documents.MaxBytes),
		Tokens:         jwttoken.NewMiddlewareAdapter(tokens),
		AdminToken:     cfg.Admin.Token,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Health:         httptransport.Health(a.checks),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return a, nil
}

// Handler returns the fully wired router.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) newLocker(ctx context.Context) (kycservice.Locker, error) {
	if a.cfg.Redis.URL == "" {
		return lock.NewMemory(), nil
	}
	client, err := platformredis.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = client.Close() })
	a.addCheck("redis", client.Health)
	a.logger.InfoContext(ctx, "using redis for kyc locks", "lock_ttl", a.cfg.Redis.LockTTL)
	return lock.NewRedis(client.Client, a.cfg.Redis.LockTTL, a.logger), nil
}

// newNotifier falls back to dropping events when the broker is unreachable so
// the API stays up without it.
func (a *App) newNotifier() kycservice.Notifier {
	if a.cfg.RabbitMQ.URL == "" {
		return notify.Noop{}
	}
	producer, err := rabbitmq.NewProducer(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.Exchange)
	if err != nil {
		a.logger.Warn("rabbitmq unavailable, status notifications disabled", "error", err)
		return notify.Noop{}
	}
	a.onClose(func() { _ = producer.Close() })
	return notify.NewBroker(producer)
}

func (a *App) startAuditRelay(ctx context.Context, b *backends) error {
	if len(a.cfg.Kafka.Brokers) == 0 || b.pool == nil {
		return nil
	}
	producer, err := kafka.NewProducer(kafka.Config{
		Brokers: a.cfg.Kafka.Brokers,
		Topic:   a.cfg.Kafka.AuditTopic,
	})
	if err != nil {
		return err
	}
	a.onClose(producer.Close)
	if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
		a.logger.WarnContext(ctx, "could not ensure audit topic", "topic", a.cfg.Kafka.AuditTopic, "error", err)
	}
	a.addCheck("kafka", producer.Ping)

	relay := worker.NewWorker(b.pool, tx.NewPgxRunner(b.pool), producer,
		worker.WithBatchSize(a.cfg.Kafka.RelayBatch),
		worker.WithInterval(a.cfg.Kafka.RelayInterval),
		worker.WithLogger(a.logger),
	)
	a.workers = append(a.workers, relay.Run)
	return nil
}

// Run serves HTTP and runs the workers until ctx is cancelled or one of them
// fails, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := httpserver.New(a.cfg.Server, a.handler)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting kycgate",
			"addr", srv.Addr,
			"storage", a.cfg.Storage.Backend,
			"documents", a.cfg.Documents.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	for _, run := range a.workers {
		g.Go(func() error {
			if err := run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for _, closeFn := range slices.Backward(a.closers) {
		closeFn()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) addCheck(name string, check httptransport.Check) {
	a.checks[name] = check
}
