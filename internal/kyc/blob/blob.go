// Package blob stores uploaded KYC documents. Metadata lives on the user
// record; these stores only hold the bytes.
package blob

import (
	"context"
	"crypto/rand"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// Store persists document content under a name and returns a reference that
// can later be used to read or remove it.
type Store interface {
	Put(ctx context.Context, name, contentType string, content io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Extension returns the lowercased extension of filename and its content
// type. Anything other than pdf, jpg, jpeg or png is unsupported media.
func Extension(filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", dErrors.New(dErrors.CodeUnsupportedMedia,
			"Invalid file type. Allowed: .pdf, .jpg, .jpeg, .png")
	}
	return ext, contentType, nil
}

// StoredName builds {userID}_{documentType}_{token}{ext}. The ULID token is
// unique across processes and sorts by upload time.
func StoredName(userID id.UserID, docType kyc.DocumentType, ext string, now time.Time) string {
	token := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return userID.String() + "_" + string(docType) + "_" + strings.ToLower(token.String()) + ext
}
