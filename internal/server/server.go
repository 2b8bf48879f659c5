// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
//   - which storage backend holds the three JSON documents
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → storage.Backend (memory | sqlite | mysql)
//	  → kv repositories → AccountService / TicketService → handlers
//
// This is the "composition root" pattern: all dependencies are wired in
// one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/sakif/ticketflow/internal/auth"
	"github.com/sakif/ticketflow/internal/clock"
	"github.com/sakif/ticketflow/internal/config"
	"github.com/sakif/ticketflow/internal/handler"
	"github.com/sakif/ticketflow/internal/middleware"
	"github.com/sakif/ticketflow/internal/repository/kv"
	"github.com/sakif/ticketflow/internal/service"
	"github.com/sakif/ticketflow/internal/storage"
	"github.com/sakif/ticketflow/internal/storage/memory"
	"github.com/sakif/ticketflow/internal/storage/mysql"
	"github.com/sakif/ticketflow/internal/storage/sqlite"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the storage backend. Start closes it after the HTTP
// server has drained; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  storage.Backend

	accounts *service.AccountService
}

// New opens the configured storage, restores any persisted session and
// builds the router.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStorage picks the key-value backend.
func openStorage(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		// os.MkdirAll creates the parent directories if needed (like `mkdir -p`).
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		return sqlite.New(cfg.SQLitePath)
	case config.DriverMySQL:
		return mysql.New(cfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                 → liveness
// POST   /api/auth/signup         → register + sign in       (rate limited)
// POST   /api/auth/login          → sign in                  (rate limited)
// POST   /api/auth/logout         → sign out
// GET    /api/auth/session        → current session           [session]
// GET    /api/dashboard           → session + ticket stats    [session]
// GET    /api/tickets?status=     → list / filter             [session]
// POST   /api/tickets             → create                    [session]
// GET    /api/tickets/{id}        → read                      [session]
// PUT    /api/tickets/{id}        → update                    [session]
// PATCH  /api/tickets/{id}        → update                    [session]
// DELETE /api/tickets/{id}        → delete                    [session]
// GET    /auth/github/login       → OAuth redirect     (GitHub configured)
// GET    /auth/github/callback    → OAuth callback     (GitHub configured)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the client IP from proxy headers; httprate keys on it
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
// 5. CORS: answers preflights before any handler runs
func (s *Server) setupRoutes() error {
	clk := clock.Real()

	// === SERVICES ===
	var passwords service.PasswordHasher = auth.PlaintextPasswords{}
	if s.config.Auth.PasswordHashing == config.HashingBcrypt {
		passwords = auth.NewPasswordService()
	}

	s.accounts = service.NewAccountService(
		kv.NewAccountRepo(s.store),
		kv.NewSessionRepo(s.store),
		passwords,
		clk,
		s.config.Auth.SimulatedLatency,
		s.logger,
	)
	tickets := service.NewTicketService(kv.NewTicketRepo(s.store, clk), s.logger)

	// A session persisted by a previous run is still signed in.
	session, err := s.accounts.RestoreSession(context.Background())
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	if session != nil {
		s.logger.Info("session restored", slog.String("email", session.Email))
	}

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// The handler field must stay a nil interface when GitHub is off.
	var github handler.OAuthProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	authHandler := handler.NewAuthHandler(s.accounts, tokens, github, s.config.Auth.SecureCookies, s.logger)
	ticketHandler := handler.NewTicketHandler(tickets, s.logger)
	healthHandler := handler.NewHealthHandler(s.config.Storage.Driver, clk)

	// === GLOBAL MIDDLEWARE ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", healthHandler.HandleHealth)

	requireSession := auth.RequireSession(tokens, s.accounts, handler.ErrorWriter(s.logger))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if n := s.config.HTTP.RateLimitPerMinute; n > 0 {
					r.Use(httprate.LimitByIP(n, time.Minute))
				}
				r.Post("/signup", authHandler.HandleSignup)
				r.Post("/login", authHandler.HandleLogin)
			})
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireSession).Get("/session", authHandler.HandleSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Get("/dashboard", ticketHandler.HandleDashboard)

			r.Get("/tickets", ticketHandler.HandleList)
			r.Post("/tickets", ticketHandler.HandleCreate)
			r.Get("/tickets/{id}", ticketHandler.HandleGet)
			r.Put("/tickets/{id}", ticketHandler.HandleUpdate)
			r.Patch("/tickets/{id}", ticketHandler.HandleUpdate)
			r.Delete("/tickets/{id}", ticketHandler.HandleDelete)
		})
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	return nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the storage backend.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the storage backend (flushes the SQLite WAL, returns MySQL connections)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("storage", s.config.Storage.Driver),
			slog.Bool("github", s.config.GitHub.Enabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
