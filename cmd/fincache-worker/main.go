package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"fincache/internal/backend"
	"fincache/internal/cli"
	"fincache/internal/identity"
	"fincache/internal/log"
	"fincache/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)
	logger.Info("Starting fincache-worker",
		log.FieldOperation, log.OpStartup,
		"gateway", cfg.Gateway,
		"cache_backend", cfg.CacheBackend,
		"warm_interval", cfg.WarmInterval.String())

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	stack := cli.BuildStack(context.Background(), logger, bc)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := stack.Cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	})

	warmer := worker.NewWarmer(stack.Services.Refreshers(), stack.Probe,
		cfg.WarmInterval, cfg.WorkerConcurrency, logger.WithComponent(log.ComponentWorker))
	go func() {
		_ = warmer.Run(ctx)
	}()

	// Changes made by other processes of the same user invalidate our view
	if stack.Feed != nil {
		handler := worker.NewChangeHandler(stack.Feed.Origin(), identity.Static(cfg.UserID),
			stack.Services.Refreshers(), logger.WithComponent(log.ComponentWorker))
		go func() {
			if err := stack.Feed.ConsumeChanges(ctx, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Change feed disabled, refreshing on interval only")
	}

	cli.WaitForShutdown(ctx, done)
}
