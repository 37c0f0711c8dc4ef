// Package server is the composition root: it wires the database, services,
// handlers, middleware, and routes, and owns the HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/auth"
	"github.com/sakif/issue-tracker/internal/config"
	"github.com/sakif/issue-tracker/internal/handler"
	"github.com/sakif/issue-tracker/internal/middleware"
	"github.com/sakif/issue-tracker/internal/model"
	sqliteRepo "github.com/sakif/issue-tracker/internal/repository/sqlite"
	"github.com/sakif/issue-tracker/internal/service"
)

// Server holds the router and the resources it owns. The database connection
// is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
// database → repositories → services → handlers → routes.
//
// It also performs the two startup writes the rest of the app relies on:
// the anonymous placeholder account is upserted (its ID is held by the issue
// service), and the admin account is provisioned when configured.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	ctx := context.Background()

	anonymousID, err := s.db.Users().EnsureAnonymous(ctx)
	if err != nil {
		return fmt.Errorf("ensuring anonymous user: %w", err)
	}

	passwords := auth.NewPasswordService()
	if err := s.bootstrapAdmin(ctx, passwords); err != nil {
		return fmt.Errorf("bootstrapping admin account: %w", err)
	}

	state, err := auth.NewStateService(s.config.StateSecret)
	if err != nil {
		return err
	}
	provider := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.OAuthCallbackURL,
	)

	authService := service.NewAuthService(
		s.db.Users(), s.db.Tokens(), s.db.Social(),
		passwords, provider, state, s.logger,
	)
	issueService := service.NewIssueService(s.db.Issues(), anonymousID, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	issueHandler := handler.NewIssueHandler(issueService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	requireAuth := auth.RequireAuth(authService)
	optionalAuth := auth.OptionalAuth(authService)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.HandleLogin)
			r.Get("/url", authHandler.HandleAuthURL)
			r.Get("/complete/{provider}", authHandler.HandleOAuthComplete)
			r.Post("/complete/{provider}", authHandler.HandleOAuthComplete)
			r.With(requireAuth).Get("/user", authHandler.HandleMe)
		})

		r.Route("/issues", func(r chi.Router) {
			// Creation accepts anonymous submissions; everything else
			// requires a valid token.
			r.With(optionalAuth).Post("/create", issueHandler.HandleCreate)
			r.With(optionalAuth).Post("/", issueHandler.HandleCreate)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", issueHandler.HandleList)
				r.Get("/stats", issueHandler.HandleStats)
				r.Get("/{id}", issueHandler.HandleGet)
				r.Post("/{id}/update-status", issueHandler.HandleUpdateStatus)
				r.Patch("/{id}/update-status", issueHandler.HandleUpdateStatus)
				r.Delete("/{id}", issueHandler.HandleDelete)
			})
		})
	})

	return nil
}

// bootstrapAdmin provisions the admin account named in the configuration.
// Runs at every startup: the account is created if missing and its profile
// is always forced to the admin role, so a demoted admin can be restored by
// restarting with the right environment.
func (s *Server) bootstrapAdmin(ctx context.Context, passwords *auth.PasswordService) error {
	if s.config.AdminEmail == "" {
		return nil
	}

	user, err := s.db.Users().GetByEmail(ctx, s.config.AdminEmail)
	if errors.Is(err, apperror.ErrNotFound) {
		hash, herr := passwords.Hash(s.config.AdminPassword)
		if herr != nil {
			return herr
		}
		username, _, _ := strings.Cut(s.config.AdminEmail, "@")
		user = &model.User{
			Username:     username,
			Email:        s.config.AdminEmail,
			PasswordHash: hash,
		}
		if err := s.db.Users().Create(ctx, user); err != nil {
			return err
		}
		s.logger.Info("admin account created", slog.String("email", s.config.AdminEmail))
	} else if err != nil {
		return err
	}

	return s.db.Users().UpsertProfile(ctx, user.ID, model.RoleAdmin)
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database.
func (s *Server) Start() error {
	defer s.db.Close()

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
			slog.String("database", s.config.DBPath),
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
