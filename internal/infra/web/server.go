package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"candidate-screening/internal/usecase"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes the queue management API.
type Server struct {
	queue   usecase.QueueUseCase
	auth    *AuthManager
	checks  map[string]HealthCheck
	log     *zerolog.Logger
	timeout time.Duration

	srv *http.Server
}

func NewServer(queue usecase.QueueUseCase, auth *AuthManager, checks map[string]HealthCheck, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		queue:   queue,
		auth:    auth,
		checks:  checks,
		log:     &l,
		timeout: 15 * time.Second,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(traceID, requestLog(s.log), recoverer(s.log), timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)

			r.Get("/jobs", s.handleListJobs)
			r.Post("/jobs", s.handleEnqueue)
			r.Delete("/jobs", s.handleClearAll)
			r.Get("/jobs/stats", s.handleStats)
			r.Delete("/jobs/completed", s.handleClearCompleted)
			r.Get("/jobs/{id}", s.handleGetJob)
			r.Post("/jobs/{id}/retry", s.handleRetry)

			r.Get("/applications/flagged", s.handleListFlagged)

			r.Post("/interviews/{applicationID}/started", s.handleInterviewStarted)
			r.Post("/interviews/{applicationID}/completed", s.handleInterviewCompleted)
		})
	})
	return r
}

// Start blocks serving on port until Shutdown.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
