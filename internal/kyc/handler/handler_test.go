package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycgate/internal/kyc/handler/mocks"
	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	userID  id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), 64)
	h.Register(s.router)
	h.RegisterAdmin(s.router)
	s.userID = id.NewUserID()
}

func (s *HandlerSuite) asUser(req *http.Request) *http.Request {
	return testutil.WithUserID(req, s.userID.String())
}

func (s *HandlerSuite) uploadRequest(filename string, content []byte, fields map[string]string) *http.Request {
	return testutil.NewMultipartRequest(s.T(), "/auth/kyc/upload-document", "file", filename, content, fields)
}

func (s *HandlerSuite) TestSubmit() {
	s.Run("accepted submission", func() {
		submittedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		s.service.EXPECT().Submit(gomock.Any(), s.userID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.UserID, d *kyc.Data) (*kyc.SubmitResult, error) {
				s.Equal("Asha", d.FirstName)
				return &kyc.SubmitResult{Accepted: true, Status: kyc.StatusUnderReview, SubmittedAt: submittedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/auth/kyc/submit", map[string]string{"first_name": "Asha"})))

		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "accepted", true)
		testutil.AssertJSONContains(s.T(), rr, "status", "under_review")
	})

	s.Run("validation errors list every problem", func() {
		s.service.EXPECT().Submit(gomock.Any(), s.userID, gomock.Any()).
			Return(nil, dErrors.Validation("KYC validation failed", "First Name is required", "Invalid PAN number format"))

		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/auth/kyc/submit", map[string]string{})))

		s.Equal(http.StatusUnprocessableEntity, rr.Code)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("validation_error", resp.Error)
		s.Equal([]string{"First Name is required", "Invalid PAN number format"}, resp.Errors)
	})

	s.Run("admin submits on behalf of a user", func() {
		other := id.NewUserID()
		s.service.EXPECT().Submit(gomock.Any(), other, gomock.Any()).
			Return(&kyc.SubmitResult{Accepted: true, Status: kyc.StatusUnderReview}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/kyc/submit?user_id="+other.String(), map[string]string{})
		rr := testutil.DoRequest(s.router, testutil.WithAdmin(req))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("unauthenticated request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/auth/kyc/submit", map[string]string{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("malformed JSON", func() {
		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewRequestWithBody(s.T(), http.MethodPost,
			"/auth/kyc/submit", "{")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestStatus() {
	s.Run("own status", func() {
		s.service.EXPECT().GetStatus(gomock.Any(), s.userID).
			Return(&kyc.StatusView{Status: kyc.StatusPending}, nil)

		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewRequest(s.T(), http.MethodGet,
			"/auth/kyc/status/"+s.userID.String())))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "status", "pending")
		testutil.AssertJSONContains(s.T(), rr, "is_kyc_verified", false)
	})

	s.Run("another user's status is forbidden", func() {
		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewRequest(s.T(), http.MethodGet,
			"/auth/kyc/status/"+id.NewUserID().String())))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("admin may read any status", func() {
		other := id.NewUserID()
		s.service.EXPECT().GetStatus(gomock.Any(), other).
			Return(&kyc.StatusView{Status: kyc.StatusApproved, Verified: true}, nil)

		rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewRequest(s.T(), http.MethodGet,
			"/auth/kyc/status/"+other.String())))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("unknown user", func() {
		s.service.EXPECT().GetStatus(gomock.Any(), s.userID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "User not found"))

		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewRequest(s.T(), http.MethodGet,
			"/auth/kyc/status/"+s.userID.String())))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("invalid user id", func() {
		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewRequest(s.T(), http.MethodGet,
			"/auth/kyc/status/not-a-uuid")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestUpload() {
	s.Run("stores the document", func() {
		s.service.EXPECT().UploadDocument(gomock.Any(), s.userID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.UserID, req kyc.UploadRequest) (*kyc.UploadResult, error) {
				s.Equal("government_id", req.DocumentType)
				s.Equal("P123", req.DocumentNumber)
				s.Equal("id.pdf", req.Filename)
				b, err := io.ReadAll(req.Content)
				s.Require().NoError(err)
				s.Equal("%PDF", string(b))
				return &kyc.UploadResult{StoredName: "u_government_id_x.pdf"}, nil
			})

		rr := testutil.DoRequest(s.router, s.asUser(s.uploadRequest("id.pdf", []byte("%PDF"),
			map[string]string{"document_type": "government_id", "document_number": "P123"})))
		s.Equal(http.StatusCreated, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "stored_name", "u_government_id_x.pdf")
	})

	s.Run("missing file", func() {
		rr := testutil.DoRequest(s.router, s.asUser(s.uploadRequest("", nil,
			map[string]string{"document_type": "government_id"})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("unsupported media", func() {
		s.service.EXPECT().UploadDocument(gomock.Any(), s.userID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnsupportedMedia, "Invalid file type. Allowed: .pdf, .jpg, .jpeg, .png"))

		rr := testutil.DoRequest(s.router, s.asUser(s.uploadRequest("id.docx", []byte("x"),
			map[string]string{"document_type": "government_id"})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnsupportedMediaType, "unsupported_media_type")
	})

	s.Run("not multipart", func() {
		rr := testutil.DoRequest(s.router, s.asUser(testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/auth/kyc/upload-document", map[string]string{})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestUpdateStatus() {
	s.Run("updated", func() {
		notes := "ok"
		s.service.EXPECT().Review(gomock.Any(), s.userID, kyc.StatusApproved, &notes).Return(true, nil)

		rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewJSONRequest(s.T(), http.MethodPut,
			"/auth/kyc/update-status", map[string]any{
				"user_id": s.userID.String(), "new_status": "approved", "reviewer_notes": " ok ",
			})))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "updated", true)
	})

	s.Run("unknown user", func() {
		s.service.EXPECT().Review(gomock.Any(), s.userID, kyc.StatusRejected, nil).Return(false, nil)

		rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewJSONRequest(s.T(), http.MethodPut,
			"/auth/kyc/update-status", map[string]any{"user_id": s.userID.String(), "new_status": "rejected"})))
		s.Equal(http.StatusNotFound, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "updated", false)
	})

	s.Run("invalid status", func() {
		rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewJSONRequest(s.T(), http.MethodPut,
			"/auth/kyc/update-status", map[string]any{"user_id": s.userID.String(), "new_status": "pending"})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("illegal transition", func() {
		s.service.EXPECT().Review(gomock.Any(), s.userID, kyc.StatusApproved, nil).
			Return(false, dErrors.New(dErrors.CodeInvalidState, "kyc cannot move from rejected to approved"))

		rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewJSONRequest(s.T(), http.MethodPut,
			"/auth/kyc/update-status", map[string]any{"user_id": s.userID.String(), "new_status": "approved"})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "invalid_state")
	})
}

func (s *HandlerSuite) TestPendingReviews() {
	s.service.EXPECT().ListPending(gomock.Any()).Return([]kyc.ReviewCandidate{
		{UserID: s.userID.String(), Status: kyc.StatusUnderReview},
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewRequest(s.T(), http.MethodGet,
		"/auth/kyc/pending-reviews")))
	s.Equal(http.StatusOK, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "count", float64(1))
}

func (s *HandlerSuite) TestAuditTrail() {
	s.service.EXPECT().AuditTrail(gomock.Any(), s.userID).Return([]audit.Entry{
		{UserID: s.userID, Action: audit.ActionKYCSubmitted},
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.WithAdmin(testutil.NewRequest(s.T(), http.MethodGet,
		"/auth/kyc/audit/"+s.userID.String())))
	s.Equal(http.StatusOK, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "user_id", s.userID.String())
}
