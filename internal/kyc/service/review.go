package service

import (
	"context"
	"errors"

	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// Review applies an administrator's decision. It reports false with no error
// when the user does not exist, in which case nothing is written.
func (s *Service) Review(ctx context.Context, userID id.UserID, status kyc.Status, notes *string) (bool, error) {
	ctx, done := s.startSpan(ctx, "review", userID)
	defer done()

	if userID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	if !status.IsReviewOutcome() {
		return false, dErrors.Validation("invalid review status",
			"new_status must be one of approved, rejected, incomplete")
	}

	found := true
	err := s.withUserLock(ctx, userID, func() error {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				found = false
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}

		now := requestcontext.Now(ctx)
		next := user.Clone()
		if err := next.ApplyReview(status, notes, now); err != nil {
			return err
		}
		next.UpdatedAt = now

		entry := newEntry(ctx, userID, audit.ActionStatusUpdated, now)
		entry.Status = status.String()
		entry.ReviewerNotes = notes

		if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.users.UpdateKYC(ctx, next); err != nil {
				return err
			}
			return s.emitAudit(ctx, entry)
		}); err != nil {
			return translateWriteErr(err)
		}

		s.notify(ctx, next, audit.ActionStatusUpdated, now)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !found {
		s.logger.InfoContext(ctx, "kyc review for unknown user",
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return false, nil
	}

	if s.metrics != nil {
		s.metrics.IncReview(status.String())
	}
	s.logAudit(ctx, string(audit.ActionStatusUpdated),
		"user_id", userID.String(),
		"status", status.String(),
		"actor", requestcontext.Actor(ctx),
	)
	return true, nil
}
