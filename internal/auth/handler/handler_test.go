package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycgate/internal/auth/handler/mocks"
	"kycgate/internal/auth/models"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) sampleUser() *models.User {
	user, err := models.NewUser("ada@example.com", "$2a$hash", "Ada", time.Now())
	s.Require().NoError(err)
	return user
}

func (s *HandlerSuite) TestRegister() {
	s.Run("created user omits the password hash", func() {
		user := s.sampleUser()
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).Return(user, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register",
			map[string]string{"email": "ada@example.com", "password": "pw"}))

		s.Equal(http.StatusCreated, rr.Code)
		var body map[string]any
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
		s.Equal("User registered", body["msg"])
		u := body["user"].(map[string]any)
		s.Equal("ada@example.com", u["email"])
		s.Equal("pending", u["kyc_status"])
		s.Equal(false, u["is_kyc_verified"])
		s.NotContains(u, "password_hash")
		s.NotContains(u, "PasswordHash")
	})

	s.Run("duplicate email maps to 409", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "Email already registered"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register",
			map[string]string{"email": "ada@example.com", "password": "pw"}))

		s.Equal(http.StatusConflict, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "error_description", "Email already registered")
	})

	s.Run("invalid email is rejected before the service", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register",
			map[string]string{"email": "nope", "password": "pw"}))

		s.Equal(http.StatusUnprocessableEntity, rr.Code)
	})

	s.Run("malformed JSON is a bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/register", "{"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestLogin() {
	s.Run("returns a bearer token", func() {
		user := s.sampleUser()
		s.service.EXPECT().Login(gomock.Any(), gomock.Any()).Return(&models.LoginResult{
			User: user, AccessToken: "signed.jwt", TokenType: "Bearer", ExpiresIn: 3600,
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login",
			map[string]string{"email": "ada@example.com", "password": "pw"}))

		s.Equal(http.StatusOK, rr.Code)
		var body map[string]any
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
		s.Equal("signed.jwt", body["access_token"])
		s.Equal("Bearer", body["token_type"])
		s.Equal("Login successful", body["msg"])
	})

	s.Run("bad credentials map to 401", func() {
		s.service.EXPECT().Login(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login",
			map[string]string{"email": "ada@example.com", "password": "bad"}))

		s.Equal(http.StatusUnauthorized, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "error", "unauthorized")
	})
}
