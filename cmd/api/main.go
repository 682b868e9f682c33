package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/crawl-tracker/internal/adapter/postgres"
	"github.com/user/crawl-tracker/internal/app"
	"github.com/user/crawl-tracker/internal/delivery/http/handler"
	"github.com/user/crawl-tracker/internal/delivery/http/router"
	"github.com/user/crawl-tracker/pkg/config"
	"github.com/user/crawl-tracker/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", true, "apply database migrations on startup")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logLevel := logger.ParseLevel(cfg.Log.Level)
	logger.Init(os.Stdout, logLevel, cfg.Log.Format)
	slog.Info("Logger initialized", "level", logLevel.String(), "format", cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
			slog.Error("Failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// --- Application ---
	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	stopBackground := application.StartBackground(ctx)
	defer stopBackground()

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(application.Crawler, application.Reporter, application.HealthChecks())
	httpRouter := router.New(apiHandler, cfg.Server.WriteTimeout)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			slog.Error("Could not listen on port", "port", cfg.Server.Port, "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	slog.Info("Server stopped")
}
