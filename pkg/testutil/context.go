package testutil

import (
	"net/http"

	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

// WithUserID simulates the auth middleware for an authenticated request.
// Invalid IDs are ignored so tests can exercise the unauthenticated path.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithAdmin simulates a request that presented the admin token.
func WithAdmin(req *http.Request) *http.Request {
	return req.WithContext(requestcontext.WithAdmin(req.Context()))
}
