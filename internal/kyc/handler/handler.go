package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/platform/httputil"
	"kycgate/pkg/requestcontext"
)

// Service defines the interface for KYC operations.
type Service interface {
	Submit(ctx context.Context, userID id.UserID, data *kyc.Data) (*kyc.SubmitResult, error)
	GetStatus(ctx context.Context, userID id.UserID) (*kyc.StatusView, error)
	UploadDocument(ctx context.Context, userID id.UserID, req kyc.UploadRequest) (*kyc.UploadResult, error)
	Review(ctx context.Context, userID id.UserID, status kyc.Status, notes *string) (bool, error)
	ListPending(ctx context.Context) ([]kyc.ReviewCandidate, error)
	AuditTrail(ctx context.Context, userID id.UserID) ([]audit.Entry, error)
}

// multipartOverhead leaves room for form fields and boundaries on top of the
// document size limit.
const multipartOverhead = 1 << 20

// Handler serves the KYC routes for users and administrators.
type Handler struct {
	kyc            Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(kyc Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{kyc: kyc, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts routes that require an authenticated user (or the admin token).
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/kyc/submit", h.HandleSubmit)
	r.Get("/auth/kyc/status/{user_id}", h.HandleStatus)
	r.Post("/auth/kyc/upload-document", h.HandleUpload)
}

// RegisterAdmin mounts the review routes. Callers guard them with the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/auth/kyc/update-status", h.HandleUpdateStatus)
	r.Get("/auth/kyc/pending-reviews", h.HandlePendingReviews)
	r.Get("/auth/kyc/audit/{user_id}", h.HandleAuditTrail)
}

type updateStatusResponse struct {
	Updated bool `json:"updated"`
}

type pendingReviewsResponse struct {
	Users []kyc.ReviewCandidate `json:"users"`
	Count int                   `json:"count"`
}

type auditTrailResponse struct {
	UserID  string        `json:"user_id"`
	Entries []audit.Entry `json:"entries"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := targetUser(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	data, ok := httputil.DecodeAndPrepare[kyc.Data](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.kyc.Submit(ctx, userID, data)
	if err != nil {
		h.logFailure(ctx, "kyc submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return
	}
	if !requestcontext.IsAdmin(ctx) && requestcontext.UserID(ctx) != userID {
		h.logger.WarnContext(ctx, "kyc status requested for another user",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Not allowed to view this user's KYC status"))
		return
	}

	view, err := h.kyc.GetStatus(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "kyc status lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := targetUser(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "File too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart/form-data body"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.Validation("invalid document upload", "file is required"))
		return
	}
	defer file.Close()

	result, err := h.kyc.UploadDocument(ctx, userID, kyc.UploadRequest{
		DocumentType:   r.FormValue("document_type"),
		DocumentNumber: r.FormValue("document_number"),
		Filename:       header.Filename,
		Content:        file,
	})
	if err != nil {
		h.logFailure(ctx, "document upload failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[kyc.ReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.kyc.Review(ctx, req.ParsedUserID(), req.ParsedStatus(), req.ReviewerNotes)
	if err != nil {
		h.logFailure(ctx, "kyc review failed", err)
		httputil.WriteError(w, err)
		return
	}
	if !updated {
		httputil.WriteJSON(w, http.StatusNotFound, updateStatusResponse{Updated: false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updateStatusResponse{Updated: true})
}

func (h *Handler) HandlePendingReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.kyc.ListPending(ctx)
	if err != nil {
		h.logFailure(ctx, "listing pending reviews failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pendingReviewsResponse{Users: users, Count: len(users)})
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user_id"))
		return
	}
	entries, err := h.kyc.AuditTrail(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "audit trail lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditTrailResponse{UserID: userID.String(), Entries: entries})
}

// targetUser is the authenticated user, or for admin requests the user named
// by the user_id query parameter.
func targetUser(r *http.Request) (id.UserID, error) {
	ctx := r.Context()
	if requestcontext.IsAdmin(ctx) {
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := id.ParseUserID(raw)
			if err != nil {
				return id.UserID{}, dErrors.New(dErrors.CodeBadRequest, "invalid user_id")
			}
			return userID, nil
		}
	}
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

// logFailure logs expected client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	args := []any{"request_id", requestcontext.RequestID(ctx), "error", err}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
