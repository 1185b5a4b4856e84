package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-market/atelier/internal/identity"
	"github.com/atelier-market/atelier/internal/observability"
	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
	"github.com/atelier-market/atelier/internal/storefront"
	"github.com/atelier-market/atelier/jobs"
	"github.com/atelier-market/atelier/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	Resolver          *identity.Resolver
	Guard             rbac.Guard
	IdentityHandler   *identity.Handler
	StorefrontHandler *storefront.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with storefront defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Resolver.Middleware)
		if params.IdentityHandler != nil {
			r.Route("/auth", params.IdentityHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Routes())
			if params.StorefrontHandler != nil {
				params.StorefrontHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.With(params.Guard.RequireAny(rbac.PermManageSettings)).Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}

// staticCacheHandler lets browsers keep static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
