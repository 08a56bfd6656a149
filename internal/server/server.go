// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package server wires configuration, storage and the authentication
// layer into the running HTTP service.
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

	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"github.com/assesshub/platform/internal/config"
	"github.com/assesshub/platform/internal/csrf"
	"github.com/assesshub/platform/internal/database"
	"github.com/assesshub/platform/internal/handlers"
	"github.com/assesshub/platform/internal/identity"
	"github.com/assesshub/platform/internal/middleware"
	"github.com/assesshub/platform/internal/models"
	"github.com/assesshub/platform/internal/repository"
	"github.com/assesshub/platform/internal/token"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)

	codec, err := token.NewCodec(
		secretOrGenerate(cfg.Auth.TokenSecret, "auth.token_secret"),
		cfg.Auth.TokenTTL,
		cfg.Auth.Issuer,
	)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	cache := identity.NewCache(cfg.Auth.CacheTTL)
	csrfStore := csrf.NewStore(db,
		secretOrGenerate(cfg.CSRF.Secret, "csrf.secret"),
		cfg.CSRF.TokenTTL,
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	csrfStore.StartSweeper(sweepCtx, cfg.CSRF.SweepInterval)

	e := NewEcho(cfg, repo, codec, cache, csrfStore)

	return startWithGracefulShutdown(e, cfg)
}

// NewEcho builds the fully wired Echo instance. Split out from Run so
// tests can exercise the complete middleware stack in process.
func NewEcho(cfg *config.Config, repo *repository.Repository, codec *token.Codec,
	cache *identity.Cache, csrfStore *csrf.Store) *echo.Echo {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	setupMiddleware(e, cfg)
	setupRoutes(e, cfg, repo, codec, cache, csrfStore)

	return e
}

func setupRoutes(e *echo.Echo, cfg *config.Config, repo *repository.Repository,
	codec *token.Codec, cache *identity.Cache, csrfStore *csrf.Store) {

	h := handlers.New(repo, codec, csrfStore, cfg.Secure())

	e.GET("/health", h.Health)

	api := e.Group("/api")

	// Public endpoints: no identity yet, so no CSRF token to validate.
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)

	authenticate := middleware.Authenticate(codec, cache, repo)
	guard := csrf.Guard(csrf.GuardConfig{
		Store:  csrfStore,
		Secure: cfg.Secure(),
		SkipPaths: []string{
			"/health",
			"/api/auth/login",
			"/api/auth/register",
			"/api/auth/csrf-token",
		},
	})

	authed := api.Group("", authenticate, guard)
	authed.GET("/auth/me", h.Me)
	authed.GET("/auth/csrf-token", h.CSRFToken)
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/assessments", h.ListAssessments)
	authed.POST("/assessments", h.CreateAssessment,
		middleware.RequireRole(models.RoleTeacher, models.RoleAdmin))
}

// secretOrGenerate decodes the configured secret or generates a random
// one. Generated secrets do not survive restarts, so tokens signed with
// them die with the process; fine for development, logged loudly so it is
// never mistaken for a production setup.
func secretOrGenerate(configured, name string) []byte {
	if configured != "" {
		return []byte(configured)
	}
	slog.Warn("no secret configured, generating an ephemeral one", "setting", name)
	return securecookie.GenerateRandomKey(32)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
