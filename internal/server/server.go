package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/sim"
	"github.com/me/queuesim/internal/store"
)

// Server is the queuesim REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	manager   *sim.Manager
	store     store.Store // nil when runs are not persisted
	loop      *sim.Loop
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore enables the /runs endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithLoop sets the loop advancing simulations in automatic mode.
func WithLoop(l *sim.Loop) Option {
	return func(s *Server) {
		s.loop = l
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, mgr *sim.Manager, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		manager:   mgr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartLoop runs the automatic-mode loop in a background goroutine.
func (s *Server) StartLoop(ctx context.Context) {
	if s.loop == nil {
		return
	}
	go func() {
		if err := s.loop.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("loop stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/simulations", func(r chi.Router) {
			r.Get("/", s.handleListSimulations)
			r.Post("/", s.handleCreateSimulation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSimulation)
				r.Delete("/", s.handleDeleteSimulation)
				r.Post("/tick", s.handleTick)
				r.Post("/run", s.handleRun)
				r.Put("/auto", s.handleSetAuto)
				r.Post("/finish", s.handleFinish)
				r.Get("/segments", s.handleSegments)
				r.Get("/events", s.handleSSESimulation)

				r.Route("/clients", func(r chi.Router) {
					r.Get("/", s.handleListClients)
					r.Post("/", s.handleAddClient)
					r.Route("/{cid}", func(r chi.Router) {
						r.Get("/", s.handleGetClient)
						r.Post("/block", s.handleBlockClient)
						r.Post("/resume", s.handleResumeClient)
					})
				})
			})
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Get("/results", s.handleListResults)
			})
		})
	})
}
