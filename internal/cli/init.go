// Package cli provides common initialization utilities shared by
// cmd/fincache and cmd/fincache-worker.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fincache/internal/backend"
	"fincache/internal/config"
	"fincache/internal/log"
)

// SetupLogger builds the process logger writing text to w at the configured
// level and makes it the slog default, so packages falling back to
// log.Default share it.
func SetupLogger(cfg *config.Config, component string, w io.Writer) *log.Logger {
	lc := cfg.LoggerConfig(component)
	lc.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lc.Level})
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration and validates it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildStack builds the backend stack from cfg, exiting the process
// on failure.
func BuildStack(ctx context.Context, logger *log.Logger, cfg backend.Config) *backend.Stack {
	stack, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).Build(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	return stack
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
