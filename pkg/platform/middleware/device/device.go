// Package device derives a human-readable device label from the User-Agent
// so audit entries can say where an action came from.
package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDevice struct{}

const unknownDevice = "Unknown Device"

// ParseUserAgent renders a label such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OSInfo().Name
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	if ua.Mobile() && !strings.Contains(platform, ua.Platform()) && ua.Platform() != "" {
		platform = ua.Platform() + " " + platform
	}
	return strings.TrimSpace(browser + " on " + platform)
}

// Middleware stores the parsed device label on the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithDevice(r.Context(), ParseUserAgent(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the device label, or "" outside HTTP.
func FromContext(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDevice{}).(string); ok {
		return label
	}
	return ""
}

// WithDevice injects a device label. Service tests use it directly.
func WithDevice(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, label)
}
