package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/capture"
	"github.com/kozaktomas/facevote/internal/config"
	"github.com/kozaktomas/facevote/internal/constants"
	"github.com/kozaktomas/facevote/internal/protocol"
	"github.com/kozaktomas/facevote/internal/verify"
	"github.com/kozaktomas/facevote/internal/web/handlers"
	"github.com/kozaktomas/facevote/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
	source     protocol.LiveSource
	jobManager *handlers.JobManager
	sessions   *handlers.SessionRegistry
}

// NewServer creates a new web server. source is the server-attached camera;
// when nil, verification descriptors are submitted by clients and the
// enrollment capture endpoints are not mounted.
func NewServer(cfg *config.Config, source protocol.LiveSource, logger *zap.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		logger:     logger,
		source:     source,
		jobManager: handlers.NewJobManager(),
		sessions:   handlers.NewSessionRegistry(),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Web.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // SSE capture streams
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) engine() *verify.Engine {
	return verify.NewEngine(s.config.Biometric.Threshold, s.config.Biometric.MinMatches)
}

func (s *Server) policy() protocol.Policy {
	return protocol.Policy{
		MaxAttempts:    s.config.Biometric.MaxAttempts,
		SessionTimeout: s.config.Biometric.SessionTimeout,
	}
}

func (s *Server) captureController() *capture.Controller {
	return capture.NewController(capture.Options{
		TargetCount:  s.config.Biometric.TargetCount,
		Budget:       s.config.Biometric.CaptureBudget,
		SuccessPause: s.config.Biometric.SuccessPause,
		FailurePause: s.config.Biometric.FailurePause,
	}, s.logger)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.sessions.Start(constants.SessionSweepIntervalSeconds * time.Second)
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr), zap.Bool("camera", s.source != nil))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	s.jobManager.CancelAll()
	s.sessions.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
