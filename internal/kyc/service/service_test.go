package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,AuditPublisher,BlobStore,Locker,Notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"

	authmodels "kycgate/internal/auth/models"
	kycmetrics "kycgate/internal/kyc/metrics"
	kyc "kycgate/internal/kyc/models"
	"kycgate/internal/kyc/notify"
	"kycgate/internal/kyc/service/mocks"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	users     *mocks.MockUserStore
	auditor   *mocks.MockAuditPublisher
	blobs     *mocks.MockBlobStore
	locker    *mocks.MockLocker
	notifier  *mocks.MockNotifier
	metrics   *kycmetrics.Metrics
	service   *Service
	ctx       context.Context
	fixedTime time.Time
	user      *authmodels.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.blobs = mocks.NewMockBlobStore(s.ctrl)
	s.locker = mocks.NewMockLocker(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.metrics = kycmetrics.New(prometheus.NewRegistry())
	s.service = New(s.users, s.auditor, s.blobs, s.locker,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithNotifier(s.notifier),
		WithMaxDocumentBytes(16),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
	)
	s.fixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.fixedTime)
	s.ctx = requestcontext.WithRequestID(s.ctx, "req-1")

	user, err := authmodels.NewUser("asha@example.com", "hash", "Asha Rao", s.fixedTime.Add(-time.Hour))
	s.Require().NoError(err)
	s.user = user
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func validData() kyc.Data {
	return kyc.Data{
		FirstName:          "Asha",
		LastName:           "Rao",
		DateOfBirth:        "1990-04-12",
		Nationality:        "Indian",
		PhoneNumber:        "+91 98765-43210",
		AddressLine1:       "12 MG Road",
		City:               "Bengaluru",
		State:              "Karnataka",
		PostalCode:         "560001",
		Country:            "India",
		PANNumber:          "ABCDE1234F",
		GovernmentIDType:   "passport",
		GovernmentIDNumber: "P1234567",
	}
}

func (s *ServiceSuite) expectLock() {
	s.locker.EXPECT().Acquire(gomock.Any(), s.user.ID.String()).Return(func() {}, nil)
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("moves the user under review and records a snapshot", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)

		var saved *authmodels.User
		s.users.EXPECT().UpdateKYC(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *authmodels.User) error {
				saved = u
				return nil
			})
		var entry audit.Entry
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Entry) error {
				entry = e
				return nil
			})
		s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ev notify.Event) error {
				s.Equal("under_review", ev.Status)
				s.Equal(string(audit.ActionKYCSubmitted), ev.Action)
				return nil
			})

		data := validData()
		result, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.Require().NoError(err)
		s.True(result.Accepted)
		s.Equal(kyc.StatusUnderReview, result.Status)
		s.Equal(s.fixedTime, result.SubmittedAt)

		s.Require().NotNil(saved)
		s.Equal(kyc.StatusUnderReview, saved.Status)
		s.False(saved.Verified)
		s.Equal(s.fixedTime, saved.UpdatedAt)
		s.Require().NotNil(saved.Data.SubmittedAt)

		s.Equal(audit.ActionKYCSubmitted, entry.Action)
		s.Equal(s.user.ID, entry.UserID)
		s.Equal("req-1", entry.RequestID)
		s.Equal("under_review", entry.Status)
		var snap kyc.Data
		s.Require().NoError(json.Unmarshal(entry.Snapshot, &snap))
		s.Equal("ABCDE1234F", snap.PANNumber)

		s.Equal(1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues("accepted")))
	})

	s.Run("rejects invalid data without touching state", func() {
		data := validData()
		data.PANNumber = "ABCD1234F"
		data.FirstName = ""

		_, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		details := dErrors.DetailsOf(err)
		s.Contains(details, "Invalid PAN number format")
		s.Len(details, 2)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues("invalid")))
	})

	s.Run("reports a conflict when another write holds the lock", func() {
		s.locker.EXPECT().Acquire(gomock.Any(), s.user.ID.String()).Return(nil, sentinel.ErrLocked)

		data := validData()
		_, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LockContention))
	})

	s.Run("maps a lost version race to conflict", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)
		s.users.EXPECT().UpdateKYC(gomock.Any(), gomock.Any()).Return(sentinel.ErrVersionConflict)

		data := validData()
		_, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("fails when the audit entry cannot be written", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)
		s.users.EXPECT().UpdateKYC(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		data := validData()
		_, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown user", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(nil, sentinel.ErrNotFound)

		data := validData()
		_, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("notification failure does not fail the submission", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)
		s.users.EXPECT().UpdateKYC(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

		data := validData()
		result, err := s.service.Submit(s.ctx, s.user.ID, &data)
		s.Require().NoError(err)
		s.True(result.Accepted)
	})
}

func (s *ServiceSuite) underReview() *authmodels.User {
	u := s.user.Clone()
	s.Require().NoError(u.ApplySubmission(validData(), s.fixedTime.Add(-time.Minute)))
	return u
}

func (s *ServiceSuite) TestReview() {
	s.Run("approval sets the verified flag and records notes", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.underReview(), nil)

		var saved *authmodels.User
		s.users.EXPECT().UpdateKYC(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *authmodels.User) error {
				saved = u
				return nil
			})
		var entry audit.Entry
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Entry) error {
				entry = e
				return nil
			})
		s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any()).Return(nil)

		notes := "documents match"
		found, err := s.service.Review(s.ctx, s.user.ID, kyc.StatusApproved, &notes)
		s.Require().NoError(err)
		s.True(found)

		s.Equal(kyc.StatusApproved, saved.Status)
		s.True(saved.Verified)
		s.Require().NotNil(saved.Data.ReviewedAt)
		s.Equal(s.fixedTime, *saved.Data.ReviewedAt)
		s.Equal("documents match", *saved.Data.ReviewerNotes)

		s.Equal(audit.ActionStatusUpdated, entry.Action)
		s.Equal("approved", entry.Status)
		s.Equal("documents match", *entry.ReviewerNotes)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Reviews.WithLabelValues("approved")))
	})

	s.Run("unknown user reports not found without an audit entry", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(nil, sentinel.ErrNotFound)

		found, err := s.service.Review(s.ctx, s.user.ID, kyc.StatusRejected, nil)
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("rejects a status that is not a review outcome", func() {
		found, err := s.service.Review(s.ctx, s.user.ID, kyc.StatusUnderReview, nil)
		s.False(found)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("refuses to review a user who never submitted", func() {
		s.expectLock()
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)

		_, err := s.service.Review(s.ctx, s.user.ID, kyc.StatusApproved, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ServiceSuite) TestUploadDocument() {
	s.Run("stores the file and appends pending metadata", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)
		s.blobs.EXPECT().Put(gomock.Any(), gomock.Any(), "application/pdf", gomock.Any()).
			DoAndReturn(func(_ context.Context, name, _ string, r io.Reader) (string, error) {
				b, err := io.ReadAll(r)
				s.Require().NoError(err)
				s.Equal("%PDF-1.7", string(b))
				return "mem://" + name, nil
			})
		var appended kyc.Document
		s.users.EXPECT().AppendDocument(gomock.Any(), s.user.ID, gomock.Any(), s.fixedTime).
			DoAndReturn(func(_ context.Context, _ id.UserID, doc kyc.Document, _ time.Time) error {
				appended = doc
				return nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Entry) error {
				s.Equal(audit.ActionDocumentUploaded, e.Action)
				s.Contains(string(e.Snapshot), "government_id")
				return nil
			})

		result, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType:   "government_id",
			DocumentNumber: " P1234567 ",
			Filename:       "id.PDF",
			Content:        strings.NewReader("%PDF-1.7"),
		})
		s.Require().NoError(err)
		s.True(strings.HasSuffix(result.StoredName, ".pdf"))
		s.Equal(result.StoredName, appended.StoredName)
		s.Equal("mem://"+result.StoredName, appended.FileReference)
		s.Equal("P1234567", appended.DocumentNumber)
		s.Equal("id.PDF", appended.OriginalFilename)
		s.Equal(kyc.VerificationPending, appended.VerificationStatus)
		s.Equal(int64(8), appended.SizeBytes)
		s.Equal(s.fixedTime, appended.UploadedAt)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.DocumentsUploads.WithLabelValues("government_id")))
	})

	s.Run("rejects unsupported extensions", func() {
		_, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType: "government_id",
			Filename:     "id.docx",
			Content:      strings.NewReader("x"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedMedia))
	})

	s.Run("rejects unknown document types", func() {
		_, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType: "selfie",
			Filename:     "me.png",
			Content:      strings.NewReader("x"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects oversized content", func() {
		_, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType: "bank_statement",
			Filename:     "stmt.pdf",
			Content:      strings.NewReader(strings.Repeat("a", 17)),
		})
		s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	})

	s.Run("rejects empty content", func() {
		_, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType: "bank_statement",
			Filename:     "stmt.pdf",
			Content:      strings.NewReader(""),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("removes the stored file when the append fails", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user.Clone(), nil)
		s.blobs.EXPECT().Put(gomock.Any(), gomock.Any(), "image/png", gomock.Any()).Return("mem://x.png", nil)
		s.users.EXPECT().AppendDocument(gomock.Any(), s.user.ID, gomock.Any(), s.fixedTime).Return(errors.New("connection reset"))
		s.blobs.EXPECT().Delete(gomock.Any(), "mem://x.png").Return(nil)

		_, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType: "address_proof",
			Filename:     "bill.png",
			Content:      strings.NewReader("png"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown user stores nothing", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.UploadDocument(s.ctx, s.user.ID, kyc.UploadRequest{
			DocumentType: "address_proof",
			Filename:     "bill.jpg",
			Content:      strings.NewReader("jpg"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestGetStatus() {
	s.Run("returns the current state", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.underReview(), nil)

		view, err := s.service.GetStatus(s.ctx, s.user.ID)
		s.Require().NoError(err)
		s.Equal(kyc.StatusUnderReview, view.Status)
		s.False(view.Verified)
		s.Equal("Asha", view.Data.FirstName)
	})

	s.Run("unknown user", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetStatus(s.ctx, s.user.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListPending() {
	pending := s.underReview()
	s.users.EXPECT().ListByKYCStatus(gomock.Any(), kyc.StatusUnderReview, kyc.StatusIncomplete).
		Return([]*authmodels.User{pending}, nil)

	candidates, err := s.service.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(candidates, 1)
	c := candidates[0]
	s.Equal(s.user.ID.String(), c.UserID)
	s.Equal("XXXXX234F", c.Data.PANNumber)
	s.Equal(25, c.Risk.Score)
	s.Equal(kyc.RiskLow, c.Risk.Level)
}

func (s *ServiceSuite) TestAuditTrail() {
	s.auditor.EXPECT().List(gomock.Any(), s.user.ID).Return(nil, nil)

	entries, err := s.service.AuditTrail(s.ctx, s.user.ID)
	s.Require().NoError(err)
	s.NotNil(entries)
	s.Empty(entries)
}
