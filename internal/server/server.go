// Package server wires the application together: database, GitHub
// clients, services, handlers, routes, and graceful shutdown. It is the
// composition root; main.go stays minimal.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gitinspire/gitinspire-server/internal/auth"
	"github.com/gitinspire/gitinspire-server/internal/config"
	"github.com/gitinspire/gitinspire-server/internal/github"
	"github.com/gitinspire/gitinspire-server/internal/handler"
	"github.com/gitinspire/gitinspire-server/internal/middleware"
	sqliteRepo "github.com/gitinspire/gitinspire-server/internal/repository/sqlite"
	"github.com/gitinspire/gitinspire-server/internal/service"
)

// Server owns the router and the resources that must be released on
// shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain: DB → repositories → services
// → handlers → routes. Each layer receives only the interfaces it needs.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
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
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}
	provider := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubRedirectURL)
	ghClient := github.NewRESTClient(s.config.GitHubClientID, s.config.GitHubClientSecret)

	authService := service.NewAuthService(provider, tokens, s.db, s.config.OwnerID, s.logger)
	tagService := service.NewTagService(s.db, s.logger)
	repoService := service.NewRepoService(s.db, s.db, s.db, ghClient, s.logger)
	userService := service.NewUserService(s.db, s.db, s.db, ghClient, s.logger)
	reportService := service.NewReportService(s.db, s.logger)
	logService := service.NewLogService(s.db, s.logger)
	langService := service.NewLanguageService(s.db, s.logger)

	secure := s.config.Production()
	authHandler := handler.NewAuthHandler(authService, secure, s.logger)
	tagHandler := handler.NewTagHandler(tagService, s.logger)
	repoHandler := handler.NewRepoHandler(repoService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	reportHandler := handler.NewReportHandler(reportService, s.logger)
	logHandler := handler.NewLogHandler(logService, s.logger)
	langHandler := handler.NewLanguageHandler(langService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Identity resolution runs on every request; the route guards below
	// decide who gets through.
	s.router.Use(auth.Authenticator(tokens, s.db, secure))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/authenticate", authHandler.HandleAuthenticate)
			r.Post("/token/refresh", authHandler.HandleRefreshToken)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Get("/languages", langHandler.HandleList)
		r.Get("/random", repoHandler.HandleRandom)

		r.Route("/repositories", func(r chi.Router) {
			r.Get("/filter", repoHandler.HandleFilter)
			r.Get("/{id}", repoHandler.HandleGet)
			r.Get("/{id}/refresh", repoHandler.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned)
				r.Post("/", repoHandler.HandleSuggest)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned, auth.RequireAdmin)
				r.Patch("/{id}", repoHandler.HandleUpdate)
				r.Delete("/{id}", repoHandler.HandleDelete)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", tagHandler.HandleList)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned)
				r.Post("/", tagHandler.HandleCreate)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned, auth.RequireAdmin)
				r.Patch("/{name}", tagHandler.HandleRename)
				r.Delete("/{name}", tagHandler.HandleDelete)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}", userHandler.HandleGet)
			r.Get("/{id}/refresh", userHandler.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned, auth.RequireAdmin)
				r.Get("/banned", userHandler.HandleBanned)
				r.Patch("/{id}", userHandler.HandleUpdate)
			})
		})

		r.Route("/report", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned)
				r.Post("/", reportHandler.HandleCreate)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth, auth.NotBanned, auth.RequireAdmin)
				r.Get("/", reportHandler.HandleList)
				r.Delete("/{id}", reportHandler.HandleDelete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth, auth.NotBanned, auth.RequireAdmin)
			r.Get("/logs", logHandler.HandleList)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests and closes the database.
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
			slog.String("env", s.config.Env),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
