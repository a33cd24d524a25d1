package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"kycgate/internal/kyc/blob"
	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/audit"
	"kycgate/pkg/requestcontext"
)

// UploadDocument stores the content and appends its metadata to the user's
// document list. Appends are atomic in the store so no user lock is taken.
func (s *Service) UploadDocument(ctx context.Context, userID id.UserID, req kyc.UploadRequest) (*kyc.UploadResult, error) {
	ctx, done := s.startSpan(ctx, "upload", userID)
	defer done()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	docType, err := kyc.ParseDocumentType(strings.TrimSpace(req.DocumentType))
	if err != nil {
		return nil, dErrors.Validation("invalid document upload",
			"document_type must be one of government_id, address_proof, pan_card, bank_statement, income_proof")
	}
	ext, contentType, err := blob.Extension(req.Filename)
	if err != nil {
		return nil, err
	}
	if req.Content == nil {
		return nil, dErrors.Validation("invalid document upload", "file is required")
	}

	content, err := io.ReadAll(io.LimitReader(req.Content, s.maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read uploaded file")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("File exceeds the %d byte limit", s.maxBytes))
	}
	if len(content) == 0 {
		return nil, dErrors.Validation("invalid document upload", "file is empty")
	}

	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	storedName := blob.StoredName(userID, docType, ext, now)
	ref, err := s.blobs.Put(ctx, storedName, contentType, bytes.NewReader(content))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	doc := kyc.Document{
		DocumentType:       docType,
		DocumentNumber:     strings.TrimSpace(req.DocumentNumber),
		StoredName:         storedName,
		FileReference:      ref,
		OriginalFilename:   req.Filename,
		ContentType:        contentType,
		SizeBytes:          int64(len(content)),
		VerificationStatus: kyc.VerificationPending,
		UploadedAt:         now,
	}
	snapshot, err := json.Marshal(doc)
	if err != nil {
		s.discardBlob(ctx, ref)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to snapshot document")
	}
	entry := newEntry(ctx, userID, audit.ActionDocumentUploaded, now)
	entry.Snapshot = snapshot

	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.AppendDocument(ctx, userID, doc, now); err != nil {
			return err
		}
		return s.emitAudit(ctx, entry)
	}); err != nil {
		s.discardBlob(ctx, ref)
		return nil, translateWriteErr(err)
	}

	if s.metrics != nil {
		s.metrics.ObserveUpload(string(docType), doc.SizeBytes)
	}
	s.logAudit(ctx, string(audit.ActionDocumentUploaded),
		"user_id", userID.String(),
		"document_type", string(docType),
		"stored_name", storedName,
	)
	return &kyc.UploadResult{StoredName: storedName, Document: doc}, nil
}

// discardBlob removes content whose metadata never made it to the store.
func (s *Service) discardBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned document",
			"file_reference", ref,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
