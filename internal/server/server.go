// Package server provides the HTTP server of the catalog API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/devrev/catalogd/internal/config"
	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/handler"
	"github.com/devrev/catalogd/internal/health"
	"github.com/devrev/catalogd/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the session API, health probes and metrics
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	sessions    *handler.SessionHandler
	healthCheck *health.HealthChecker
	gatherer    prometheus.Gatherer
	logger      *zap.Logger
	cfg         *config.Config
}

// NewServer creates a new HTTP server and configures its routes
func NewServer(
	cfg *config.Config,
	sessions handler.SessionRegistry,
	healthCheck *health.HealthChecker,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		sessions:    handler.NewSessionHandler(&handler.Config{WaitTimeout: cfg.Sessions.PrimeTimeout}, sessions, logger),
		healthCheck: healthCheck,
		gatherer:    gatherer,
		logger:      logger,
		cfg:         cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}
	if s.cfg.Server.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(s.cfg.Server.RequestsPerSecond, s.cfg.Server.Burst, s.logger)
		chain = append(chain, limiter.Limit)
	}
	s.router.Use(mux.MiddlewareFunc(middleware.Chain(chain...)))

	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	s.sessions.Register(api)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteErrorResponse(w, http.StatusNotFound, errors.ErrCodeNotFound, "endpoint not found", r.Header.Get("X-Request-ID"))
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteErrorResponse(w, http.StatusMethodNotAllowed, errors.ErrCodeValidation, "method not allowed", r.Header.Get("X-Request-ID"))
	})
	// subrouters do not inherit these from the root
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.healthCheck.SetDraining()
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
