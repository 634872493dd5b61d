// Package main provides the entry point for the batch extraction
// orchestrator. It walks the source catalog in ID order, runs one driver
// subprocess per batch, and checkpoints progress after each verified batch.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipfarm/extractor/internal/batch"
	"github.com/clipfarm/extractor/internal/bootstrap"
	"github.com/clipfarm/extractor/internal/config"
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

	logger.Info("starting batch orchestrator",
		slog.Int("batch_size", cfg.BatchSize),
		slog.Int("inter_batch_delay_sec", cfg.InterBatchDelaySec),
		slog.Int("max_retries", cfg.MaxRetries),
		slog.String("checkpoint_file", cfg.CheckpointFile),
	)

	// First signal cancels the context so the run stops at a batch
	// boundary; a second signal kills the process the default way.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewBatcherDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer deps.Catalog.Close()

	if err := deps.Orchestrator.Run(ctx); err != nil {
		if errors.Is(err, batch.ErrPermanentFailures) {
			logger.Error("run finished with permanently failed rows")
		}
		return err
	}

	logger.Info("batch orchestrator finished")
	return nil
}
