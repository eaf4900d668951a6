package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/onboard", h.HandleOnboard)
		r.Get("/profiles", h.HandleListProfiles)
		r.Get("/profiles/{state}", h.HandleGetProfile)

		r.Post("/import", h.HandleImport)
		r.Get("/imports/{runID}/progress", h.HandleImportProgress)
		r.Get("/runs", h.HandleListRuns)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/duplicate-addresses", h.HandleDuplicateAddresses)
			r.Get("/quality", h.HandleQualityReport)
		})
	})

	return r
}
