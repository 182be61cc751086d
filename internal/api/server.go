// Package api provides the HTTP API server for the kinship service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kinship-labs/kinship/internal/api/handlers"
	"github.com/kinship-labs/kinship/internal/api/health"
	"github.com/kinship-labs/kinship/internal/api/middleware"
	"github.com/kinship-labs/kinship/internal/auth"
	"github.com/kinship-labs/kinship/internal/family"
	"github.com/kinship-labs/kinship/internal/store"
	"github.com/kinship-labs/kinship/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	registry      *family.Registry
	invitations   *family.InvitationService
	auth          *auth.Service
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies. The
// database pinger may be nil when the store has no reachable backend.
func NewServer(cfg *config.Config, st store.Store, registry *family.Registry, invitations *family.InvitationService, authSvc *auth.Service, dbPinger health.Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:       st,
		registry:    registry,
		invitations: invitations,
		auth:        authSvc,
		config:      cfg,
		logger:      logger,
	}

	s.healthChecker = health.NewChecker(Version)
	if dbPinger != nil {
		s.healthChecker.Register("database", dbPinger)
	}

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	// Auth routes (no auth required)
	authHandler := handlers.NewAuthHandler(s.store, s.auth, s.logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Token-addressed invitation routes (public). The invitee follows the
	// emailed link before they have an account.
	invitationsHandler := handlers.NewInvitationsHandler(s.invitations, s.logger)
	r.Route("/invitations/{token}", func(r chi.Router) {
		r.Get("/preview", invitationsHandler.Preview)
		r.Post("/decline", invitationsHandler.Decline)
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
		r.Use(authMiddleware.Authenticate)

		r.Get("/me", authHandler.Me)

		typesHandler := handlers.NewRelationshipTypesHandler(s.registry, s.invitations.Validator(), s.logger)
		r.Route("/relationship-types", func(r chi.Router) {
			r.Get("/", typesHandler.List)
			r.Post("/", typesHandler.Create)
			r.Post("/seed", typesHandler.Seed)
			r.Get("/calculate", typesHandler.Calculate)
			r.Post("/validate", typesHandler.Validate)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", typesHandler.Get)
				r.Get("/opposite", typesHandler.Opposite)
				r.Put("/rules", typesHandler.UpdateRules)
				r.Delete("/", typesHandler.Deactivate)
			})
		})

		membersHandler := handlers.NewMembersHandler(s.store, s.logger)
		r.Route("/members", func(r chi.Router) {
			r.Post("/", membersHandler.Create)
			r.Route("/{memberID}", func(r chi.Router) {
				r.Get("/", membersHandler.Get)
				r.Patch("/", membersHandler.Update)
				r.Delete("/", membersHandler.Deactivate)
			})
		})

		edgesHandler := handlers.NewEdgesHandler(s.store, s.invitations.Validator(), s.logger)
		r.Get("/network", edgesHandler.Network)
		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgesHandler.Create)
			r.Get("/", edgesHandler.List)
			r.Route("/{edgeID}", func(r chi.Router) {
				r.Patch("/", edgesHandler.Update)
				r.Put("/visibility", edgesHandler.SetVisibility)
				r.Delete("/", edgesHandler.Deactivate)
			})
		})

		r.Route("/invitations", func(r chi.Router) {
			r.Post("/", invitationsHandler.Create)
			r.Get("/sent", invitationsHandler.ListSent)
			r.Get("/received", invitationsHandler.ListReceived)
			r.Get("/stats", invitationsHandler.Stats)
			r.Post("/expire-sweep", invitationsHandler.ExpireSweep)
			r.Post("/accept/{token}", invitationsHandler.Accept)
			r.Delete("/{invitationID}", invitationsHandler.Cancel)
		})
	})

	s.router = r
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// HTTPServer returns the underlying http.Server once Start has been called.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
