package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/unalkalkan/podcaster/internal/api"
	"github.com/unalkalkan/podcaster/internal/app"
	"github.com/unalkalkan/podcaster/internal/config"
	"github.com/unalkalkan/podcaster/internal/health"
	"github.com/unalkalkan/podcaster/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults plus PODCASTER_* env when empty)")
	envFile := flag.String("env-file", ".env", "Path to a dotenv file with provider credentials")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.Info("starting podcaster server", "version", app.Version, "config", *configPath)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	healthHandler := health.NewHandler(app.Version)
	healthHandler.Register("storage", health.StorageCheck(a.Storage))
	healthHandler.Register("profiles", health.ProfileCheck(a.Registry, cfg.Pipeline.DefaultProfile))

	router := api.NewRouter(api.RouterConfig{
		Podcasts:  api.NewPodcastHandler(a.Orchestrator, a.Storage, cfg.Server.MaxUploadSize, cfg.Server.MaxRuns),
		Providers: api.NewProviderHandler(a.Registry, cfg.Pipeline.DefaultProfile),
		Health:    healthHandler,
		Version:   app.Version,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}
