package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askmesh/askmesh/internal/api"
	"github.com/askmesh/askmesh/internal/api/uistatic"
	"github.com/askmesh/askmesh/internal/app"
	"github.com/askmesh/askmesh/internal/assistant"
	"github.com/askmesh/askmesh/internal/auth"
	"github.com/askmesh/askmesh/internal/config"
	"github.com/askmesh/askmesh/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("askmesh-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build assistant", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	checks := []api.ReadinessCheck{api.CheckDatabase(a.Ping)}
	deps := api.Dependencies{
		Logger:            logger,
		Sessions:          assistant.NewSessions(a.NewAssistant, assistant.SessionLimits{
			Max:         cfg.Sessions.Max,
			IdleTimeout: cfg.Sessions.IdleTimeout,
		}),
		Tables:            a.Tables,
		UI:                uistatic.Handler(),
		DependencyTimeout: time.Second,
	}
	if a.ObjectStore != nil {
		deps.HistoryExport = a.ObjectStore
		checks = append(checks, api.CheckObjectStoreConfig(cfg))
	}
	deps.Readiness = api.CombineReadinessChecks(checks...)
	if cfg.Auth.Required {
		validator, err := auth.NewStaticKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
