package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/pokelab/internal/config"
	"github.com/JonMunkholm/pokelab/internal/core"
	"github.com/JonMunkholm/pokelab/internal/logging"
	"github.com/JonMunkholm/pokelab/internal/metrics"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/store"
	"github.com/JonMunkholm/pokelab/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"pokeapi", cfg.PokeAPI.BaseURL,
		"fetch_batch_size", cfg.Fetch.BatchSize,
		"import_max_file_size", cfg.Import.MaxFileSize,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	var m *metrics.Manager
	if cfg.Metrics.Enabled {
		m = metrics.NewManager(metrics.WithNamespace(cfg.Metrics.Namespace))
	}

	client := pokeapi.NewClient(cfg.PokeAPI.BaseURL,
		pokeapi.WithTimeout(cfg.PokeAPI.Timeout),
		pokeapi.WithUserAgent(cfg.PokeAPI.UserAgent),
	)
	fetcher := pokeapi.NewFetcher(client,
		pokeapi.WithBatchSize(cfg.Fetch.BatchSize),
		pokeapi.WithLogger(logger),
		pokeapi.WithMetrics(m),
	)

	service := core.NewService(store.New(), fetcher,
		core.WithLogger(logger),
		core.WithMetrics(m),
		core.WithChunkSize(cfg.Import.ChunkSize),
		core.WithJobTimeout(cfg.Jobs.Timeout),
		core.WithJobRetention(cfg.Jobs.Retention),
	)

	server := web.NewServer(service, cfg, m)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Cancel running fetch or import jobs and wait for them to stop
		if active := service.Status().Jobs.Active; active > 0 {
			slog.Info("cancelling running jobs", "active", active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("jobs did not stop in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
