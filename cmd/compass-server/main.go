// ABOUTME: Entry point for the compass persistence server
// ABOUTME: Loads config, opens the document store, and serves the HTTP RPC surface

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

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/careeros/compass/internal/api"
	"github.com/careeros/compass/internal/archive"
	"github.com/careeros/compass/internal/auth"
	"github.com/careeros/compass/internal/catalog"
	"github.com/careeros/compass/internal/config"
	"github.com/careeros/compass/internal/docstore"
	"github.com/careeros/compass/internal/ledger"
	"github.com/careeros/compass/internal/memory"
)

// Version is set at build time.
var version = "dev"

const banner = `
  ___ ___  _ __ ___  _ __   __ _ ___ ___
 / __/ _ \| '_ ' _ \| '_ \ / _' / __/ __|
| (_| (_) | | | | | | |_) | (_| \__ \__ \
 \___\___/|_| |_| |_| .__/ \__,_|___/___/
                    |_|
`

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// defaultConfigPath resolves the config file location.
// Priority: COMPASS_CONFIG env var > ./compass.yaml
func defaultConfigPath() string {
	if envPath := os.Getenv("COMPASS_CONFIG"); envPath != "" {
		return envPath
	}
	return "compass.yaml"
}

func run(ctx context.Context, configPath string) error {
	// A .env next to the binary is a development convenience; missing is fine.
	_ = godotenv.Load()

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting compass-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
	)

	schema := docstore.Schema{
		ledger.Collection,
		memory.Collection,
		archive.Collection,
		catalog.Collection,
	}
	store, err := docstore.NewSQLiteStore(cfg.Database.Path, schema)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	catalogSvc := catalog.New(store, logger)
	if cfg.Catalog.SeedPath != "" {
		if _, err := catalogSvc.Seed(ctx, cfg.Catalog.SeedPath); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}

	handlers := api.NewHandlers(
		ledger.New(store, logger),
		memory.New(store, logger),
		archive.New(store, logger),
		catalogSvc,
		logger,
	)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      api.NewRouter(handlers, verifier),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
