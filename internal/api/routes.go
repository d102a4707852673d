package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		// Protected routes (session cookie required)
		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(h.sessions))

			r.Get("/catalog", h.Catalog)
			r.Get("/categories/{slug}", h.Category)

			r.Get("/decisions", h.ListDecisions)
			r.Route("/decisions/{id}", func(r chi.Router) {
				r.Use(DecisionCtx(h.catalog))
				r.Get("/", h.GetDecision)
				r.Put("/answer", h.SaveAnswer)
				r.Post("/confirm", h.Confirm)
				r.Post("/reopen", h.Reopen)
				r.Post("/flag", h.ToggleFlag)
				r.Post("/comments", h.AddComment)
				r.Post("/implement", h.MarkImplemented)
				r.Post("/attachments", h.UploadAttachment)
			})

			r.Get("/activity", h.Activity)
			r.Get("/export.json", h.ExportJSON)
			r.Get("/export.md", h.ExportMarkdown)
			r.Post("/publish", h.Publish)
			r.Post("/state/backup", h.Backup)
		})
	})

	return r
}
