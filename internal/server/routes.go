package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/observability"
	"github.com/apony/quoteintake/internal/server/handlers"
	servermw "github.com/apony/quoteintake/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	if s.deps.Intake != nil {
		quotes := handlers.NewQuoteRequestHandler(s.deps.Intake)
		s.router.Post(servermw.QuoteRequestsPath, quotes.Create)
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint registers the signal endpoint when an admin token is configured
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.deps.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no QUOTEINTAKE_ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.deps.AdminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
