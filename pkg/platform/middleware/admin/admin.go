package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "kycgate/pkg/platform/middleware/request"
	"kycgate/pkg/requestcontext"
)

const HeaderAdminToken = "X-Admin-Token"

func validToken(presented, expected string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// RequireAdminToken rejects requests without the configured admin token.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !validToken(r.Header.Get(HeaderAdminToken), expectedToken) {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdmin(ctx)))
		})
	}
}

// DetectAdminToken marks the request as admin when a valid token is present
// and otherwise leaves it untouched for user authentication downstream.
func DetectAdminToken(expectedToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validToken(r.Header.Get(HeaderAdminToken), expectedToken) {
				r = r.WithContext(requestcontext.WithAdmin(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
}
