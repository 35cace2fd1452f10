package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-cluster/internal/web/handlers"
	"github.com/kozaktomas/face-cluster/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	clustersHandler := handlers.NewClustersHandler(s.store)
	facesHandler := handlers.NewFacesHandler(s.store, s.opts)
	runsHandler := handlers.NewRunsHandler(s.store, s.opts)
	statsHandler := handlers.NewStatsHandler(s.store)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Read-only
		r.Get("/stats", statsHandler.Get)
		r.Get("/clusters", clustersHandler.List)
		r.Get("/clusters/{id}", clustersHandler.Get)
		r.Get("/people/{name}", clustersHandler.ByName)
		r.Get("/faces/{id}", facesHandler.Get)
		r.Get("/runs", runsHandler.List)

		// Writes are refused while a clustering run persists its results
		r.Group(func(r chi.Router) {
			r.Use(middleware.RefuseDuringRun(s.store))

			r.Put("/clusters/{id}", clustersHandler.Rename)
			r.Put("/clusters/{id}/representative", clustersHandler.SetRepresentative)
			r.Post("/faces/{id}/exclude", facesHandler.Exclude)
			r.Post("/faces/{id}/assign", facesHandler.Assign)
			r.Delete("/faces/{id}/correction", facesHandler.RemoveCorrection)
			r.Post("/reconcile", runsHandler.Reconcile)
			r.Post("/repair", runsHandler.Repair)
		})
	})
}
