package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/longregen/parallelproof/internal/adapters/http/handlers"
	"github.com/longregen/parallelproof/internal/adapters/http/middleware"
	"github.com/longregen/parallelproof/internal/config"
	"github.com/longregen/parallelproof/internal/ports"
)

// Deps are the application services the routes delegate to.
type Deps struct {
	DB             handlers.Pinger
	Submit         ports.SubmitOptimization
	Status         ports.GetTaskStatus
	Events         handlers.TaskEventSource
	Version        string
	MetricsHandler http.Handler
}

type Server struct {
	config     *config.Config
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MetricsHandler == nil {
		deps.MetricsHandler = promhttp.Handler()
	}
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	s.setupRouter()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // No write timeout for WebSocket streaming
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	healthHandler := handlers.NewHealthHandler(s.deps.DB, s.config.Server.Environment, s.deps.Version)
	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", s.deps.MetricsHandler)

	optimizationHandler := handlers.NewOptimizationHandler(s.deps.Submit, s.deps.Status, s.logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", optimizationHandler.Submit)
		r.Get("/task/{id}", optimizationHandler.GetTask)
	})

	streamHandler := handlers.NewTaskStreamHandler(s.deps.Events, s.config.Server.CORSOrigins, s.logger)
	r.Get("/ws/{task_id}", streamHandler.Handle)

	s.router = r
}

// Start listens on the configured address and blocks until the server stops.
// http.ErrServerClosed is returned as nil.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve accepts on l, capped at server.max_connections concurrent
// connections when set.
func (s *Server) Serve(l net.Listener) error {
	if s.config.Server.MaxConnections > 0 {
		l = netutil.LimitListener(l, s.config.Server.MaxConnections)
	}

	s.logger.Info("starting HTTP server", "addr", l.Addr().String(), "max_connections", s.config.Server.MaxConnections)
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
