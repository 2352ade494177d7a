package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/equitydesk/captable-backend/internal/api/handlers"
	custommiddleware "github.com/equitydesk/captable-backend/internal/api/middleware"
	"github.com/equitydesk/captable-backend/internal/config"
	"github.com/equitydesk/captable-backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(systemService *service.SystemService, capTableService *service.CapTableService, waterfallService *service.WaterfallService, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/captable", func(r chi.Router) {
			capTableHandler := handlers.NewCapTableHandler(capTableService)
			r.Get("/snapshot", capTableHandler.Snapshot)
			r.Get("/ownership", capTableHandler.Ownership)
			r.Get("/validate", capTableHandler.Validate)

			r.Route("/events", func(r chi.Router) {
				r.Get("/", capTableHandler.Events)
				r.Post("/", capTableHandler.CreateEvent)
				r.Get("/{eventId}", capTableHandler.Event)
			})

			r.Route("/share-classes", func(r chi.Router) {
				r.Get("/", capTableHandler.ShareClasses)
				r.Post("/", capTableHandler.CreateShareClass)
			})

			// Internal maintenance endpoint, keyed. External loaders call it
			// after writing events behind the server's back.
			r.With(custommiddleware.APIKeyMiddleware).Post("/refresh", capTableHandler.Refresh)
		})

		r.Route("/waterfall", func(r chi.Router) {
			waterfallHandler := handlers.NewWaterfallHandler(waterfallService)
			r.Post("/distribute", waterfallHandler.Distribute)
			r.Post("/scenarios", waterfallHandler.Scenarios)
			r.Post("/validate", waterfallHandler.Validate)
		})
	})

	return r
}
