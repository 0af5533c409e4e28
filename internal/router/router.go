// Package router sets up all HTTP routes and middleware chains for the
// certforge API. It organizes routes into public and admin groups with
// appropriate middleware stacks.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certforge/internal/handlers"
	"certforge/internal/middleware"
	"certforge/internal/session"
)

// Options tunes the middleware stack.
type Options struct {
	// SecureCookies marks the CSRF cookie Secure.
	SecureCookies bool

	// LoginLimiter and VerifyLimiter throttle the unauthenticated
	// endpoints. A nil limiter disables throttling.
	LoginLimiter  *middleware.RateLimiter
	VerifyLimiter *middleware.RateLimiter

	// Ready checks the backing services for /health. Nil reports ok.
	Ready func(ctx context.Context) error
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(sessionStore *session.Store, admin *handlers.Admin, auth *handlers.Auth, public *handlers.Public, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(sessionStore))

	// Health check: no auth, no CSRF.
	r.Get("/health", healthHandler(opts.Ready))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRF(opts.SecureCookies))

		// Auth, accessible without a session.
		r.Route("/auth", func(r chi.Router) {
			r.With(limit(opts.LoginLimiter)).Post("/login", auth.Login)
			r.Post("/logout", auth.Logout)
			r.Get("/me", auth.Me)
		})

		// Public verification.
		r.Group(func(r chi.Router) {
			r.Use(limit(opts.VerifyLimiter))
			r.Get("/certificates/verify", public.Verify)
			r.Get("/certificates/verify/{code}/qr.png", public.VerifyQR)
		})

		// Administration.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/dashboard", admin.Dashboard)

			// Organizations
			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", admin.OrganizationsList)
				r.Get("/with-programs", admin.OrganizationsWithPrograms)
				r.Post("/", admin.OrganizationCreate)
				r.Get("/{id}", admin.OrganizationGet)
				r.Put("/{id}", admin.OrganizationUpdate)
				r.Delete("/{id}", admin.OrganizationDelete)
				r.Get("/{id}/programs", admin.OrganizationPrograms)
			})

			// Programs
			r.Route("/programs", func(r chi.Router) {
				r.Get("/", admin.ProgramsList)
				r.Get("/stats", admin.ProgramsStats)
				r.Post("/", admin.ProgramCreate)
				r.Get("/{id}", admin.ProgramGet)
				r.Put("/{id}", admin.ProgramUpdate)
				r.Delete("/{id}", admin.ProgramDelete)
			})

			// Templates
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", admin.TemplatesList)
				r.Post("/", admin.TemplateCreate)
				r.Post("/validate", admin.TemplateValidate)
				r.Post("/assets", admin.TemplateAssetUpload)
				r.Get("/{id}", admin.TemplateGet)
				r.Put("/{id}", admin.TemplateUpdate)
				r.Delete("/{id}", admin.TemplateDelete)
				r.Get("/{id}/preview", admin.TemplatePreview)
				r.Post("/{id}/preview", admin.TemplatePreview)
				r.Get("/{id}/download", admin.TemplateDownload)
				r.Post("/{id}/download", admin.TemplateDownload)
			})

			// Certificates
			r.Route("/certificates", func(r chi.Router) {
				r.Get("/", admin.CertificatesList)
				r.Get("/recent", admin.CertificatesRecent)
				r.Get("/stats", admin.CertificatesStats)
				r.Get("/bulk-download", admin.CertificatesBulkDownload)
				r.Post("/", admin.CertificateCreate)
				r.Post("/bulk", admin.CertificatesBulk)
				r.Get("/{id}", admin.CertificateGet)
				r.Delete("/{id}", admin.CertificateDelete)
				r.Post("/{id}/revoke", admin.CertificateRevoke)
				r.Get("/{id}/download", admin.CertificateDownload)
			})

			// Export
			r.Post("/export/bulk", admin.ExportBulk)
			r.Get("/export/logs", admin.ExportLogs)
		})
	})

	return r
}

// limit wraps rl.Middleware, passing requests through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// healthHandler answers {"status":"ok"}, or 503 {"status":"unavailable"}
// when ready reports a backing service down. Each check gets two seconds.
func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
