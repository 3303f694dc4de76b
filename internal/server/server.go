package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/vacationfavorites/apiserver/config"
	"github.com/vacationfavorites/apiserver/internal/db"
	"github.com/vacationfavorites/apiserver/internal/handlers"
	"github.com/vacationfavorites/apiserver/internal/logging"
	"github.com/vacationfavorites/apiserver/internal/mq"
	"github.com/vacationfavorites/apiserver/internal/notify"
	"github.com/vacationfavorites/apiserver/internal/security"
	"github.com/vacationfavorites/apiserver/internal/services"
	"github.com/vacationfavorites/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	backend    mq.Backend
	async      *notify.AsyncNotifier
	logger     zerolog.Logger
}

// New validates cfg, opens the database and the mail transport, and builds
// the server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var sender notify.Sender
	if cfg.MQ.Backend == "inline" {
		sender, err = notify.NewSender(cfg.Mail, logger)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	srv, err := NewWithDB(ctx, cfg, dbConn, sender, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithDB wires the server around an open database. sender delivers mail
// directly when the MQ backend is "inline" and is ignored otherwise.
func NewWithDB(ctx context.Context, cfg config.Config, dbConn *sql.DB, sender notify.Sender, logger zerolog.Logger) (*Server, error) {
	tokens, err := security.NewJWTIssuer(cfg.JWT)
	if err != nil {
		return nil, err
	}

	srv := &Server{db: dbConn, logger: logger}

	var notifier services.Notifier
	if cfg.MQ.Backend == "inline" {
		if sender == nil {
			return nil, errors.New("inline mail delivery needs a sender")
		}
		srv.async = notify.NewAsyncNotifier(sender, cfg.Mail.SendTimeout, logger)
		notifier = srv.async
	} else {
		backend, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return nil, fmt.Errorf("open mail queue: %w", err)
		}
		srv.backend = backend
		notifier = notify.NewQueueNotifier(backend, cfg.MQ.MailQueue)
	}

	userRepo := store.NewUserRepository(dbConn)

	authService := services.NewAuthService(
		userRepo,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		notifier,
		notify.NewComposer(cfg.Mail.APIURL, cfg.Mail.AppURL),
		logger.With().Str("component", "auth").Logger(),
		services.AuthOptions{
			VerificationTTL: cfg.Auth.VerificationTTL,
			ResetTTL:        cfg.Auth.ResetTTL,
			SessionTTL:      cfg.JWT.TTL,
		},
	)
	userService := services.NewUserService(userRepo, logger.With().Str("component", "users").Logger())
	guard := services.NewAccessGuard(tokens, userRepo, logger.With().Str("component", "guard").Logger())

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.SetHeader("Content-Type", "application/json"),
	)
	router.Get("/healthz", handlers.Health(dbConn))
	router.Get("/health", handlers.Health(dbConn))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, guard)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight mail, and releases
// the queue and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.async != nil {
		s.async.Wait()
	}
	if s.backend != nil {
		err = errors.Join(err, s.backend.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
