// Package server wires the engine, event stream, and HTTP surface together.
package server

import (
	"context"
	"net"
	"net/http"

	"github.com/filipexyz/keygate/internal/config"
	"github.com/filipexyz/keygate/internal/engine"
	"github.com/filipexyz/keygate/internal/events"
	"github.com/filipexyz/keygate/internal/middleware"
	"github.com/filipexyz/keygate/internal/scope"
)

// Server is the HTTP server.
type Server struct {
	cfg         *config.Config
	engine      *engine.Engine
	events      *events.Client // nil when events are disabled
	scopes      *scope.Registry
	rateLimiter *middleware.RateLimiter
	server      *http.Server
}

// New creates a server over an engine. The events client may be nil.
func New(cfg *config.Config, eng *engine.Engine, ev *events.Client, scopes *scope.Registry) *Server {
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RatePerSecond:   cfg.IPRatePerSecond,
		Burst:           cfg.IPBurst,
		CleanupInterval: middleware.DefaultRateLimitConfig().CleanupInterval,
		MaxAge:          middleware.DefaultRateLimitConfig().MaxAge,
	})

	s := &Server{
		cfg:         cfg,
		engine:      eng,
		events:      ev,
		scopes:      scopes,
		rateLimiter: rateLimiter,
	}
	s.server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.routes(),
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.server.Shutdown(ctx)
}
