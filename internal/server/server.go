// Package server exposes the observability and control HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/database"
	"github.com/aristath/spyglass/internal/prefetch"
)

// Server wraps the HTTP API for health, stats, and manual triggers.
type Server struct {
	httpServer *http.Server
	db         *database.DB
	jobs       *prefetch.Store
	scheduler  *prefetch.Scheduler
	reporter   *prefetch.Reporter
	log        zerolog.Logger
}

// New creates a new API server
func New(port int, db *database.DB, jobs *prefetch.Store, scheduler *prefetch.Scheduler, reporter *prefetch.Reporter, log zerolog.Logger) *Server {
	s := &Server{
		db:        db,
		jobs:      jobs,
		scheduler: scheduler,
		reporter:  reporter,
		log:       log.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/queues", s.handleQueues)
		r.Post("/prefetch/{type}/trigger", s.handleTrigger)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reporter.Observe())
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"depths": s.jobs.Depths(),
		"parked": s.jobs.ParkedCounts(),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	t := prefetch.JobType(chi.URLParam(r, "type"))

	known := false
	for _, jt := range prefetch.AllJobTypes() {
		if jt == t {
			known = true
			break
		}
	}
	if !known {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown job type %q", t),
		})
		return
	}

	dispatched := s.scheduler.Trigger(t)
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_type":   t,
		"dispatched": dispatched,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
