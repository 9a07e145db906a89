package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures a Chi router with all API routes.
func (s *Server) SetupRouter() http.Handler {
	r := chi.NewRouter()

	// Built-in Chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Custom middleware
	r.Use(s.LoggingMiddleware)

	// Health check and metrics stay open; probes don't carry keys.
	r.Get("/health", s.HealthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Job routes
	r.Route("/jobs/sabanas", func(r chi.Router) {
		r.Use(s.RequireAPIKey)
		r.Post("/", s.AcceptJobHandler)
		r.Get("/{fileID}", s.JobStatusHandler)
	})

	return r
}
