// Package main provides the entry point for the per-batch extraction
// driver. The parent process passes work items through the JOB_INPUT
// environment variable; progress beacons go to stdout, diagnostics to
// stderr.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipfarm/extractor/internal/bootstrap"
	"github.com/clipfarm/extractor/internal/config"
	"github.com/clipfarm/extractor/internal/driver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	items, err := driver.ParseJobInput(os.Getenv(driver.EnvJobInput))
	if err != nil {
		return fmt.Errorf("parse %s: %w", driver.EnvJobInput, err)
	}

	logger.Info("starting extraction driver",
		slog.Int("items", len(items)),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.String("temp_dir", cfg.TempDir),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewWorkerDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer deps.Catalog.Close()

	return deps.Driver.Run(ctx, items)
}
