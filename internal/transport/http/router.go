// Package httptransport assembles the HTTP surface: global middleware, the
// public account routes, the authenticated KYC routes and the admin routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"kycgate/pkg/platform/middleware/admin"
	authmw "kycgate/pkg/platform/middleware/auth"
	"kycgate/pkg/platform/middleware/device"
	"kycgate/pkg/platform/middleware/metadata"
	"kycgate/pkg/platform/middleware/request"
	"kycgate/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a group of routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// AdminRouteRegistrar mounts routes that need the admin token.
type AdminRouteRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// KYCRoutes has both user-facing and admin routes.
type KYCRoutes interface {
	RouteRegistrar
	AdminRouteRegistrar
}

type Deps struct {
	Logger         *slog.Logger
	Accounts       RouteRegistrar
	KYC            KYCRoutes
	Tokens         authmw.JWTValidator
	AdminToken     string
	RequestTimeout time.Duration
	CORSOrigins    []string
	Health         http.Handler
	Metrics        http.Handler
}

// NewRouter wires every endpoint behind the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", admin.HeaderAdminToken, request.HeaderRequestID},
		ExposedHeaders: []string{request.HeaderRequestID},
		MaxAge:         300,
	}))
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(requesttime.Middleware)
	if d.RequestTimeout > 0 {
		r.Use(request.Timeout(d.RequestTimeout))
	}
	r.Use(admin.DetectAdminToken(d.AdminToken))

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	d.Accounts.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Tokens, d.Logger))
		d.KYC.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
		d.KYC.RegisterAdmin(r)
	})

	return r
}
