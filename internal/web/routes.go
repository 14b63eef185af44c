package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/facevote/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	votersHandler := handlers.NewVotersHandler(s.config, s.logger)
	candidatesHandler := handlers.NewCandidatesHandler(s.logger)
	resultsHandler := handlers.NewResultsHandler(s.logger)
	verificationHandler := handlers.NewVerificationHandler(s.engine(), s.policy(), s.source, s.sessions, s.logger)

	// Health check and metrics
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Plain request/response endpoints
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			// Voters
			r.Post("/voters", votersHandler.Register)
			r.Get("/voters/{externalID}", votersHandler.Get)

			// Candidates
			r.Get("/candidates", candidatesHandler.List)
			r.Post("/candidates", candidatesHandler.Create)
			r.Delete("/candidates/{id}", candidatesHandler.Delete)

			// Results
			r.Get("/results", resultsHandler.Get)
			r.Get("/stats", resultsHandler.Stats)

			// Verification and voting
			r.Post("/verification", verificationHandler.Start)
			r.Get("/verification/{sessionId}", verificationHandler.Status)
			r.Post("/verification/{sessionId}/attempts", verificationHandler.Attempt)
			r.Post("/verification/{sessionId}/vote", verificationHandler.Vote)
			r.Delete("/verification/{sessionId}", verificationHandler.Cancel)
		})

		// Enrollment capture on the server camera (long-running, streamed)
		if s.source != nil {
			enrollmentHandler := handlers.NewEnrollmentHandler(s.config, s.source, s.captureController(), s.jobManager, s.logger)
			r.Post("/enrollment/capture", enrollmentHandler.Start)
			r.Get("/enrollment/{jobId}", enrollmentHandler.Status)
			r.Get("/enrollment/{jobId}/events", enrollmentHandler.Events)
			r.Post("/enrollment/{jobId}/submit", enrollmentHandler.Submit)
			r.Delete("/enrollment/{jobId}", enrollmentHandler.Cancel)
		}
	})
}
