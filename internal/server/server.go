package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/config"
	apperrors "github.com/apony/quoteintake/internal/errors"
	"github.com/apony/quoteintake/internal/observability"
	"github.com/apony/quoteintake/internal/server/handlers"
	servermw "github.com/apony/quoteintake/internal/server/middleware"
)

// Deps are the components the HTTP surface serves.
type Deps struct {
	Intake handlers.Submitter
	Health *handlers.HealthManager
	// AdminToken enables POST /admin/signal when set.
	AdminToken string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = handlers.NewHealthManager(handlers.AppVersion)
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery, so panics are still measured and correlated
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Addr:         ln.Addr().String(),
		Handler:      s.router,
		ReadTimeout:  orDefault(s.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(s.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(s.cfg.IdleTimeout, 120*time.Second),
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.cfg.Host),
			zap.Int("port", s.cfg.Port),
			zap.String("addr", ln.Addr().String()))
	}

	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured server port
func (s *Server) Port() int {
	return s.cfg.Port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
