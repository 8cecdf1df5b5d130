package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/http/middleware"
	"github.com/davidbz/turnstile/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	gate        *domain.PaymentGate
	registry    *domain.RequirementRegistry
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server (DI constructor).
func NewServer(
	cfg *config.ServerConfig,
	corsCfg *config.CORSConfig,
	handler *Handler,
	gate *domain.PaymentGate,
	registry *domain.RequirementRegistry,
) *Server {
	return &Server{
		config:      *cfg,
		handler:     handler,
		gate:        gate,
		registry:    registry,
		middlewares: middleware.BuildMiddlewareChain(corsCfg),
		srv:         nil,
	}
}

// Start validates the route table against the registry, then serves. A route
// exposed without a registry entry is a configuration error and fatal here,
// never a per-request failure.
func (s *Server) Start() error {
	routes := s.handler.Routes()

	if err := s.registry.Validate(RouteKeys(routes)); err != nil {
		return fmt.Errorf("route table validation failed: %w", err)
	}

	mux := http.NewServeMux()
	for _, route := range routes {
		var h http.Handler = route.Handler
		if route.Paid() {
			h = middleware.Payment(s.gate, route.Key, route.Description, "application/json")(h)
		}
		mux.Handle(route.Pattern, h)
	}

	// Apply middleware chain.
	handlerWithMiddleware := s.middlewares(mux)

	// Create server with timeouts.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handlerWithMiddleware,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
