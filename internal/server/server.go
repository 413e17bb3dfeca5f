// Package server is the composition root: it opens the store, builds the
// services and handlers, and mounts them on a chi router.
//
// Routes (all under cfg.APIPrefix):
//
//	GET  /                       hello
//	GET  /healthz                store ping
//	GET  /auth/login/google      redirect to Google
//	GET  /auth/callback/google   token for the Google identity
//	POST /auth/login-exchange    token for a collaborator-verified identity (needs LOGIN_EXCHANGE_KEY)
//	GET  /auth/profile           bearer
//	POST /pairings/code          bearer
//	POST /pairings/pair          bearer
//	POST /pairings/unpair        bearer
//	GET  /pairings/partner       bearer
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/auth"
	"github.com/sakif/pairing-service/internal/config"
	"github.com/sakif/pairing-service/internal/db"
	"github.com/sakif/pairing-service/internal/handler"
	"github.com/sakif/pairing-service/internal/middleware"
	"github.com/sakif/pairing-service/internal/repository/sqlstore"
	"github.com/sakif/pairing-service/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the database connection.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    *sqlstore.Store
	provider auth.IdentityProvider
}

// Option customizes a Server.
type Option func(*Server)

// WithIdentityProvider replaces the provider built from the Google settings.
func WithIdentityProvider(p auth.IdentityProvider) Option {
	return func(s *Server) { s.provider = p }
}

// New opens and migrates the database, then wires every route.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  sqlstore.New(conn),
	}

	if cfg.GoogleConfigured() {
		s.provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	} else {
		logger.Warn("google login is not configured")
		s.provider = auth.NewUnconfiguredProvider()
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		s.store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.SecretKey, s.config.JWTAlgorithm, s.config.TokenTTL())
	if err != nil {
		return err
	}

	authService := service.NewAuthService(s.store, tokens, s.logger)
	pairingService := service.NewPairingService(s.store, s.store, nil, s.logger)

	authHandler := handler.NewAuthHandler(s.provider, authService, s.config.IsProduction(), s.logger)
	pairingHandler := handler.NewPairingHandler(pairingService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", handler.LoginExchangeHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, apperror.NotFound("route", r.URL.Path))
	})

	requireAuth := auth.RequireAuth(authService, handler.WriteError)

	s.router.Route(s.config.APIPrefix, func(r chi.Router) {
		r.Get("/", handler.HandleRoot)
		r.Get("/healthz", handler.HandleHealth(s.store, s.logger))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login/google", authHandler.HandleGoogleLogin)
			r.Get("/callback/google", authHandler.HandleGoogleCallback)

			if s.config.LoginExchangeKey != "" {
				r.With(handler.RequireExchangeKey(s.config.LoginExchangeKey)).
					Post("/login-exchange", authHandler.HandleLoginExchange)
			}

			r.With(requireAuth).Get("/profile", authHandler.HandleProfile)
		})

		r.Route("/pairings", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/code", pairingHandler.HandleGenerateCode)
			r.Post("/pair", pairingHandler.HandlePair)
			r.Post("/unpair", pairingHandler.HandleUnpair)
			r.Get("/partner", pairingHandler.HandlePartner)
		})
	})

	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("prefix", s.config.APIPrefix),
			slog.String("env", s.config.AppEnv),
			slog.String("driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
