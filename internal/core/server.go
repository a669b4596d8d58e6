// Package core provides the HTTP chassis for the callback API: a chi router
// carrying the cross-cutting middleware every endpoint shares. It serves
// standard HTTP locally and the same handler behind API Gateway in Lambda.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies of the HTTP surface. Fields other than the
// router may be set after NewServer and before MountRoutes.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator ServiceAuthenticator
	HealthChecks  []HealthCheck

	// RouteRegistrars mount the authenticated callback routes. They are
	// populated by main to keep core free of handler imports.
	RouteRegistrars []func(chi.Router)

	shutdownHooks []func(context.Context) error
	router        *chi.Mux
}

// NewServer validates the required dependencies and prepares an empty router.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router for http.Server or a Lambda adapter.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in registration order.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.shutdownHooks = append(s.shutdownHooks, fn)
}

// Shutdown releases server resources such as pools and metric buffers. All
// hooks run; their errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	var errs []error
	for _, hook := range s.shutdownHooks {
		if err := hook(ctx); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
