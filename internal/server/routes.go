package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/filipexyz/keygate/internal/handler"
	"github.com/filipexyz/keygate/internal/middleware"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Identity"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(s.rateLimiter))
	r.Use(middleware.Identity)

	var eventsConnected func() bool
	var stream jetstream.Stream
	if s.events != nil {
		eventsConnected = s.events.Connected
		stream = s.events.Stream()
	}

	healthHandler := handler.NewHealthHandler(s.engine, eventsConnected)
	r.Get("/health", healthHandler.Health)

	projectHandler := handler.NewProjectHandler(s.engine)
	credentialHandler := handler.NewCredentialHandler(s.engine, s.scopes)
	eventsHandler := handler.NewEventsHandler(stream)

	// WebSocket event tail at root (no /api/v1 prefix for WS)
	r.Get("/ws", eventsHandler.Subscribe)

	r.Route("/api/v1", func(r chi.Router) {
		// Projects
		r.Post("/projects", projectHandler.Create)
		r.Get("/projects/{address}", projectHandler.Get)
		r.Post("/projects/{address}/transfer", projectHandler.Transfer)
		r.Delete("/projects/{address}", projectHandler.Close)
		r.Post("/projects/{address}/credentials", credentialHandler.Issue)

		// Credentials
		r.Get("/credentials/{address}", credentialHandler.Get)
		r.Get("/credentials/{address}/usage", credentialHandler.GetUsage)
		r.Post("/credentials/{address}/verify", credentialHandler.Verify)
		r.Post("/credentials/{address}/rotate", credentialHandler.Rotate)
		r.Put("/credentials/{address}/scopes", credentialHandler.UpdateScopes)
		r.Put("/credentials/{address}/rate-limit", credentialHandler.UpdateRateLimit)
		r.Post("/credentials/{address}/suspend", credentialHandler.Suspend)
		r.Post("/credentials/{address}/reactivate", credentialHandler.Reactivate)
		r.Post("/credentials/{address}/revoke", credentialHandler.Revoke)
		r.Delete("/credentials/{address}/usage", credentialHandler.CloseUsage)
		r.Delete("/credentials/{address}", credentialHandler.Close)

		// Event history
		r.Get("/events", eventsHandler.List)
	})

	return r
}
