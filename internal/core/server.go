// Package core provides the chassis for the rider profile API: a chi router
// with the cross-cutting middleware chain (recovery, timeouts, request IDs,
// logging, compression, metrics, API-key auth), the standard JSON response
// envelope, request validation, and the health endpoint. Domain handlers
// mount themselves through V1RouteRegistrars so core never imports them.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ridecast/internal/config"
	"ridecast/internal/observability"
)

// KeyVerifier authenticates a presented API key credential and returns the
// key ID it belongs to. Implemented by auth.APIKeyService.
type KeyVerifier interface {
	Verify(presented string) (string, error)
}

// Server bundles the dependencies of the profile API so tests can inject
// fakes per field.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   *observability.Metrics

	// Keys verifies API keys. Nil disables authentication (tests).
	Keys KeyVerifier

	// Limiter caps request rates per caller. Nil disables rate limiting.
	Limiter *RateLimiter

	// MetricsHandler serves GET /metrics when non-nil (a promhttp handler).
	MetricsHandler http.Handler

	// HealthProbes are checked concurrently by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handler routes under /v1. Populated by
	// the entry point before MountRoutes to avoid an import cycle between
	// core and the handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer prepares a Server with its router and validator. The caller
// populates the optional fields (Keys, Metrics, probes, registrars) and then
// calls MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server-held resources. The HTTP listener itself is owned
// and drained by the entry point; this hook exists for symmetry and future
// resources that belong to the chassis.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
