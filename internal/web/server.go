// Package web serves the review API: browsing clustered faces, naming
// people and launching scans with live progress over SSE.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"facesort/internal/config"
	"facesort/internal/faces"
	"facesort/internal/scan"
)

// Runner executes a scan on behalf of a web job. Implemented by
// scan.Pipeline; tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, sourceDir string, tolerance float64, events chan<- scan.Event) (*faces.Session, scan.Stats, error)
}

// Server is the HTTP layer over the scan pipeline and saved state.
type Server struct {
	cfg        *config.Config
	runner     Runner
	log        *logrus.Logger
	router     *chi.Mux
	httpServer *http.Server
	jobs       *JobManager
}

// NewServer wires the router and handlers.
func NewServer(cfg *config.Config, runner Runner, log *logrus.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		cfg:    cfg,
		runner: runner,
		log:    log,
		router: r,
		jobs:   NewJobManager(),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Serve.Host, cfg.Serve.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/clusters", s.handleListClusters)
		r.Get("/clusters/{index}/preview", s.handleClusterPreview)
		r.Put("/clusters/{index}/name", s.handleNameCluster)

		r.Get("/people", s.handleListPeople)

		r.Post("/scans", s.handleStartScan)
		r.Get("/scans/{jobId}", s.handleScanStatus)
		r.Get("/scans/{jobId}/events", s.handleScanEvents)
		r.Delete("/scans/{jobId}", s.handleCancelScan)
	})
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Infof("starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router exposes the mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
