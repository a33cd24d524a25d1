package service

import (
	"context"
	"encoding/json"

	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/requestcontext"
)

// Submit validates data and, when it is clean, moves the user under review
// and records a kyc_submitted entry with the submitted snapshot. A rejected
// submission changes nothing and writes no audit entry.
func (s *Service) Submit(ctx context.Context, userID id.UserID, data *kyc.Data) (*kyc.SubmitResult, error) {
	ctx, done := s.startSpan(ctx, "submit", userID)
	defer done()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	if data == nil {
		data = &kyc.Data{}
	}

	if problems := s.validator.Validate(data); len(problems) > 0 {
		if s.metrics != nil {
			s.metrics.IncSubmission("invalid")
		}
		s.logger.InfoContext(ctx, "kyc submission rejected",
			"user_id", userID.String(),
			"errors", len(problems),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Validation("KYC validation failed", problems...)
	}

	var result *kyc.SubmitResult
	err := s.withUserLock(ctx, userID, func() error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		next := user.Clone()
		if err := next.ApplySubmission(*data, now); err != nil {
			return err
		}
		next.UpdatedAt = now

		snapshot, err := json.Marshal(next.Data)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to snapshot submission")
		}
		entry := newEntry(ctx, userID, audit.ActionKYCSubmitted, now)
		entry.Snapshot = snapshot
		entry.Status = next.Status.String()

		if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.users.UpdateKYC(ctx, next); err != nil {
				return err
			}
			return s.emitAudit(ctx, entry)
		}); err != nil {
			return translateWriteErr(err)
		}

		s.notify(ctx, next, audit.ActionKYCSubmitted, now)
		result = &kyc.SubmitResult{Accepted: true, Status: next.Status, SubmittedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncSubmission("accepted")
	}
	s.logAudit(ctx, string(audit.ActionKYCSubmitted),
		"user_id", userID.String(),
		"actor", requestcontext.Actor(ctx),
	)
	return result, nil
}
