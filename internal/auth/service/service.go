package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"kycgate/internal/auth/models"
	"kycgate/internal/platform/metrics"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/email"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, email string) (string, error)
}

const (
	msgEmailTaken         = "Email already registered"
	msgInvalidCredentials = "Invalid credentials"
)

// dummyHash keeps unknown-email logins as slow as wrong-password logins.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("kycgate-timing-equalizer"), bcrypt.DefaultCost)

// Service registers and authenticates users.
type Service struct {
	users      UserStore
	tokens     TokenIssuer
	tokenTTL   int
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// New constructs a Service. tokenTTLSeconds is reported to clients as expires_in.
func New(users UserStore, tokens TokenIssuer, tokenTTLSeconds int, opts ...Option) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tokenTTL:   tokenTTLSeconds,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending user. The display name falls back to one
// derived from the email's local part.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, msgEmailTaken)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	fullName := req.FullName
	if fullName == "" {
		fullName = email.DisplayName(req.Email)
	}

	user, err := models.NewUser(req.Email, string(hash), fullName, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	// A concurrent registration can win between the lookup and the insert.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, msgEmailTaken)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logAudit(ctx, "user_registered", "user_id", user.ID.String())
	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		s.recordLogin(ctx, false, "")
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLogin(ctx, false, user.ID.String())
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidCredentials)
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	s.recordLogin(ctx, true, user.ID.String())
	return &models.LoginResult{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokenTTL,
	}, nil
}

func (s *Service) recordLogin(ctx context.Context, success bool, userID string) {
	if s.metrics != nil {
		s.metrics.IncrementLogin(success)
	}
	if success {
		s.logAudit(ctx, "login_succeeded", "user_id", userID)
		return
	}
	s.logger.WarnContext(ctx, "login failed",
		"user_id", userID,
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
