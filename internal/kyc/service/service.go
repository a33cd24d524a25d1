package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	authmodels "kycgate/internal/auth/models"
	kycmetrics "kycgate/internal/kyc/metrics"
	kyc "kycgate/internal/kyc/models"
	"kycgate/internal/kyc/notify"
	"kycgate/internal/kyc/validator"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/platform/middleware/device"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/platform/tx"
	"kycgate/pkg/requestcontext"
)

// UserStore is the persistence boundary for users and their KYC profile.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*authmodels.User, error)
	UpdateKYC(ctx context.Context, user *authmodels.User) error
	AppendDocument(ctx context.Context, userID id.UserID, doc kyc.Document, now time.Time) error
	ListByKYCStatus(ctx context.Context, statuses ...kyc.Status) ([]*authmodels.User, error)
}

// AuditPublisher writes and reads the compliance audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
	List(ctx context.Context, userID id.UserID) ([]audit.Entry, error)
}

// BlobStore holds uploaded document content.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, content io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Locker serializes writes to one user's KYC record.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type Notifier interface {
	StatusChanged(ctx context.Context, event notify.Event) error
}

const defaultMaxDocumentBytes = 5 << 20

// Service runs the KYC workflow: validation, the status state machine,
// document intake and the audit trail that records every change.
type Service struct {
	users     UserStore
	audit     AuditPublisher
	blobs     BlobStore
	locker    Locker
	tx        tx.Runner
	validator *validator.Validator
	notifier  Notifier
	metrics   *kycmetrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	maxBytes  int64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *kycmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

// WithMaxDocumentBytes caps upload size. Non-positive values are ignored.
func WithMaxDocumentBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. The validator is built once and shared by all
// requests.
func New(users UserStore, auditor AuditPublisher, blobs BlobStore, locker Locker, opts ...Option) *Service {
	s := &Service{
		users:     users,
		audit:     auditor,
		blobs:     blobs,
		locker:    locker,
		tx:        &tx.Serial{},
		validator: validator.New(),
		notifier:  notify.Noop{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("kycgate/internal/kyc/service"),
		maxBytes:  defaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, op string, userID id.UserID) (context.Context, func()) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "kyc."+op)
	if !userID.IsNil() {
		span.SetAttributes(attribute.String("user_id", userID.String()))
	}
	return ctx, func() {
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveLatency(op, time.Since(start).Seconds())
		}
	}
}

// withUserLock runs fn while holding the user's KYC lock.
func (s *Service) withUserLock(ctx context.Context, userID id.UserID, fn func() error) error {
	release, err := s.locker.Acquire(ctx, userID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			if s.metrics != nil {
				s.metrics.IncLockContention()
			}
			return dErrors.New(dErrors.CodeConflict, "another KYC update for this user is in progress")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire KYC lock")
	}
	defer release()
	return fn()
}

func (s *Service) loadUser(ctx context.Context, userID id.UserID) (*authmodels.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// translateWriteErr maps store and audit failures inside a unit of work.
func translateWriteErr(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "User not found")
	case errors.Is(err, sentinel.ErrVersionConflict):
		return dErrors.New(dErrors.CodeConflict, "KYC record changed concurrently, please retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist KYC change")
	}
}

// newEntry stamps an audit entry with the request's actor and client metadata.
func newEntry(ctx context.Context, userID id.UserID, action audit.Action, now time.Time) audit.Entry {
	return audit.Entry{
		ID:        id.NewAuditEntryID(),
		UserID:    userID,
		Action:    action,
		Timestamp: now,
		ActorID:   requestcontext.Actor(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    device.FromContext(ctx),
	}
}

func (s *Service) emitAudit(ctx context.Context, entry audit.Entry) error {
	if err := s.audit.Emit(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
	}
	return nil
}

// notify publishes after commit. Failures are logged and never undo the change.
func (s *Service) notify(ctx context.Context, user *authmodels.User, action audit.Action, now time.Time) {
	event := notify.Event{
		UserID:     user.ID.String(),
		Email:      user.Email,
		Status:     user.Status.String(),
		Verified:   user.Verified,
		Action:     string(action),
		OccurredAt: now,
	}
	if err := s.notifier.StatusChanged(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish kyc status notification",
			"user_id", event.UserID,
			"status", event.Status,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
