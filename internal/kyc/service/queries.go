package service

import (
	"context"

	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/requestcontext"
)

// GetStatus returns the user's current KYC state. It never writes.
func (s *Service) GetStatus(ctx context.Context, userID id.UserID) (*kyc.StatusView, error) {
	ctx, done := s.startSpan(ctx, "status", userID)
	defer done()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &kyc.StatusView{
		Status:   user.Status,
		Verified: user.Verified,
		Data:     user.Data,
	}, nil
}

// ListPending returns users awaiting a review decision with sensitive
// identifiers masked and a risk assessment attached.
func (s *Service) ListPending(ctx context.Context) ([]kyc.ReviewCandidate, error) {
	ctx, done := s.startSpan(ctx, "list_pending", id.UserID{})
	defer done()

	users, err := s.users.ListByKYCStatus(ctx, kyc.PendingReviewStatuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending reviews")
	}

	now := requestcontext.Now(ctx)
	out := make([]kyc.ReviewCandidate, 0, len(users))
	for _, u := range users {
		c := kyc.ReviewCandidate{
			UserID:    u.ID.String(),
			Email:     u.Email,
			FullName:  u.FullName,
			CreatedAt: u.CreatedAt,
			Status:    u.Status,
			Verified:  u.Verified,
			Risk:      kyc.AssessRisk(u.Data, now),
		}
		if u.Data != nil {
			masked := u.Data.Masked()
			c.Data = &masked
		}
		out = append(out, c)
	}
	return out, nil
}

// AuditTrail returns the user's audit entries in append order.
func (s *Service) AuditTrail(ctx context.Context, userID id.UserID) ([]audit.Entry, error) {
	entries, err := s.audit.List(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}
