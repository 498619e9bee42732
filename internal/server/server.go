// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, cache, mail,
// services, handlers and middleware, and decides:
// - Which URL patterns map to which handler functions
// - Which guards protect which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → New():
//	  OpenStore          → repository.Store (Postgres or SQLite)
//	  cache.NewRedis     → cache.UserCache  (or cache.Noop)
//	  storage.New*Store  → storage.AvatarStore (S3 or local disk)
//	  mail.New*Sender    → mail.Dispatcher → mail.Verifier
//	  services           → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
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

	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/cache"
	"github.com/sakif/contacts-api/internal/config"
	"github.com/sakif/contacts-api/internal/handler"
	"github.com/sakif/contacts-api/internal/mail"
	"github.com/sakif/contacts-api/internal/metrics"
	"github.com/sakif/contacts-api/internal/middleware"
	"github.com/sakif/contacts-api/internal/repository"
	"github.com/sakif/contacts-api/internal/service"
	"github.com/sakif/contacts-api/internal/storage"
)

// Deps are the external resources the server runs on. New builds them from
// config; tests pass their own.
type Deps struct {
	Store    repository.Store
	Sessions cache.UserCache
	Avatars  storage.AvatarStore
	Mail     mail.Sender
	Metrics  *metrics.Metrics
	// AvatarDir, when set, is served under /avatars/.
	AvatarDir string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool, the cache client and the mail queue.
// Close releases them in reverse order of use: first stop the mail worker
// (it may still be delivering), then the cache, then the database.
type Server struct {
	router     *chi.Mux
	config     *config.Config
	logger     *slog.Logger
	deps       Deps
	dispatcher *mail.Dispatcher
}

// New builds every dependency from cfg and wires the routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	deps := Deps{
		Store:   store,
		Metrics: metrics.New(),
	}
	fail := func(err error) (*Server, error) {
		if deps.Sessions != nil {
			deps.Sessions.Close()
		}
		store.Close()
		return nil, err
	}

	// The session cache is optional. Without Redis every request resolves
	// the user from the database.
	deps.Sessions = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, session cache disabled", slog.String("error", err.Error()))
		} else {
			deps.Sessions = rc
		}
	}

	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return fail(fmt.Errorf("configuring s3 avatar store: %w", err))
		}
		deps.Avatars = s3Store
	} else {
		local, err := storage.NewLocalStore(cfg.AvatarDir)
		if err != nil {
			return fail(fmt.Errorf("creating avatar directory: %w", err))
		}
		deps.Avatars = local
		deps.AvatarDir = local.Dir()
	}

	if cfg.SMTPEnabled() {
		deps.Mail = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.MailServer,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		})
	} else {
		logger.Warn("MAIL_SERVER not set, verification emails are only logged")
		deps.Mail = mail.NewLogSender(logger)
	}

	s, err := NewWithDeps(cfg, logger, deps)
	if err != nil {
		return fail(err)
	}
	return s, nil
}

// NewWithDeps wires routes over already-constructed dependencies and starts
// the mail worker. The server takes ownership of deps; Close releases them.
func NewWithDeps(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Sessions == nil {
		deps.Sessions = cache.Noop{}
	}
	if deps.Mail == nil {
		deps.Mail = mail.NewLogSender(logger)
	}

	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		deps:       deps,
		dispatcher: mail.NewDispatcher(deps.Mail, cfg.MailQueueSize, logger),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	s.dispatcher.Start()
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                              → welcome + database ping
// GET    /metrics                       → Prometheus scrape endpoint
// GET    /avatars/*                     → locally stored avatars
// POST   /auth/register                 → public
// POST   /auth/login                    → public (form-encoded)
// GET    /auth/verify-email?token=      → public
// POST   /auth/send-verification-email  → token + active
// GET    /user/me                       → token + active + verified, rate limited per IP
// PUT    /user/avatar                   → token + active + verified (+ admin if AVATAR_ADMIN_ONLY)
// *      /contacts/...                  → token + active + verified
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it; Recoverer sits inside
// Logger so a panic is still logged as a 500; StripSlashes lets
// "/contacts/" and "/contacts" reach the same route.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret,
		auth.WithAccessTTL(s.config.AccessTTL()),
		auth.WithVerificationTTL(s.config.VerificationTTL()),
	)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	users := s.deps.Store.Users()
	verifier := mail.NewVerifier(s.config.BaseURL, s.dispatcher)

	authService := service.NewAuthService(users, tokens, passwords, verifier, s.deps.Sessions, s.logger)
	userService := service.NewUserService(users, s.deps.Avatars, s.deps.Sessions, s.logger)
	contactService := service.NewContactService(s.deps.Store.Contacts(), s.logger)
	resolver := service.NewSessionResolver(tokens, users, s.deps.Sessions,
		s.config.SessionCacheTTL, s.deps.Metrics, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	contactHandler := handler.NewContactHandler(contactService, s.logger)
	healthHandler := handler.NewHealthHandler(s.deps.Store, s.logger)

	// === Global Middleware ===
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics(s.deps.Metrics))
	s.router.Use(chimiddleware.StripSlashes)

	s.router.Get("/", healthHandler.HandleRoot)
	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	if s.deps.AvatarDir != "" {
		fileServer := http.FileServer(http.Dir(s.deps.AvatarDir))
		s.router.Handle(storage.URLPrefix+"/*", http.StripPrefix(storage.URLPrefix+"/", fileServer))
	}

	// === Guards ===
	active := middleware.Authenticate(resolver, s.logger, auth.RequireActive)
	verified := middleware.Authenticate(resolver, s.logger, auth.RequireActive, auth.RequireVerified)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/verify-email", authHandler.HandleVerifyEmail)
		r.With(active).Post("/send-verification-email", authHandler.HandleSendVerification)
	})

	s.router.Route("/user", func(r chi.Router) {
		r.Use(verified)
		r.With(middleware.RateLimit(s.config.MeRateLimitPerMinute, s.logger)).Get("/me", userHandler.HandleMe)

		avatar := r.With()
		if s.config.AvatarAdminOnly {
			avatar = r.With(middleware.Require(auth.RequireAdmin))
		}
		avatar.Put("/avatar", userHandler.HandleUpdateAvatar)
	})

	s.router.Route("/contacts", func(r chi.Router) {
		r.Use(verified)
		r.Get("/", contactHandler.HandleList)
		r.Post("/", contactHandler.HandleCreate)
		r.Get("/search", contactHandler.HandleSearch)
		r.Get("/birthdays", contactHandler.HandleBirthdays)
		r.Get("/{id}", contactHandler.HandleGet)
		r.Put("/{id}", contactHandler.HandleUpdate)
		r.Delete("/{id}", contactHandler.HandleDelete)
	})

	return nil
}

// Close stops the mail worker and releases the cache and database.
func (s *Server) Close() error {
	s.dispatcher.Stop()

	var errs []error
	if err := s.deps.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing session cache: %w", err))
	}
	if err := s.deps.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Drain the mail queue, then close the cache and the database
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("releasing resources", slog.String("error", err.Error()))
		}
	}()

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
			slog.String("url", s.config.BaseURL),
			slog.Bool("postgres", s.config.UsesPostgres()),
			slog.Bool("redis", s.config.RedisURL != ""),
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
