// Package bootstrap provides dependency initialization for the extraction
// control plane binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clipfarm/extractor/internal/batch"
	"github.com/clipfarm/extractor/internal/catalog"
	"github.com/clipfarm/extractor/internal/config"
	"github.com/clipfarm/extractor/internal/driver"
	"github.com/clipfarm/extractor/internal/embed"
	"github.com/clipfarm/extractor/internal/job"
	"github.com/clipfarm/extractor/internal/pipeline"
	"github.com/clipfarm/extractor/internal/pool"
	"github.com/clipfarm/extractor/internal/runner"
	"github.com/clipfarm/extractor/internal/storage"
	"github.com/clipfarm/extractor/internal/vector"
	"github.com/clipfarm/extractor/internal/verify"
)

// ServerDeps holds the dependencies of the HTTP control plane.
type ServerDeps struct {
	Store  *job.Store
	Pool   *pool.Manager
	Runner *runner.Runner
}

// NewServerDeps wires the job store, worker pool and extraction runner.
func NewServerDeps(cfg *config.Config, logger *slog.Logger) *ServerDeps {
	store := job.NewStore()
	manager := pool.NewManager(cfg.MaxParallelJobs)
	run := runner.New(store, cfg.PipelineEntrypoint, logger,
		runner.WithDebugPipeline(cfg.DebugPipeline),
	)
	return &ServerDeps{Store: store, Pool: manager, Runner: run}
}

// BatcherDeps holds the dependencies of the batch orchestrator.
type BatcherDeps struct {
	Catalog      *catalog.Repository
	Orchestrator *batch.Orchestrator
}

// NewBatcherDeps wires the source repository, vector client, verifier and
// orchestrator.
func NewBatcherDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*BatcherDeps, error) {
	repo, err := catalog.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}

	vec, err := vector.NewClient(cfg.VectorURL, cfg.VectorCollection,
		vector.WithAPIKey(cfg.VectorAPIKey),
	)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create vector client: %w", err)
	}

	verifier := verify.New(vec, repo, logger)
	executor := batch.NewSubprocessExecutor(cfg.PipelineEntrypoint, nil, cfg.DebugPipeline, logger)
	orchestrator := batch.New(
		repo,
		verifier,
		executor,
		batch.NewCheckpoint(cfg.CheckpointFile),
		cfg.BatchSize,
		time.Duration(cfg.InterBatchDelaySec)*time.Second,
		cfg.MaxRetries,
		logger,
	)

	return &BatcherDeps{Catalog: repo, Orchestrator: orchestrator}, nil
}

// WorkerDeps holds the dependencies of the per-batch extraction driver.
type WorkerDeps struct {
	Catalog *catalog.Repository
	Driver  *driver.Driver
}

// NewWorkerDeps wires the object store, media pipeline, vector client and
// error sink for one driver subprocess.
func NewWorkerDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*WorkerDeps, error) {
	objects, err := initObjectStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, err := catalog.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}

	vec, err := vector.NewClient(cfg.VectorURL, cfg.VectorCollection,
		vector.WithAPIKey(cfg.VectorAPIKey),
	)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create vector client: %w", err)
	}

	var pipeOpts []pipeline.PipelineOption
	if cfg.EmbedURL != "" {
		embedder, err := embed.NewClient(cfg.EmbedURL)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("create embed client: %w", err)
		}
		pipeOpts = append(pipeOpts, pipeline.WithEmbedder(embedder))
	}
	pipe := pipeline.NewFFmpegPipeline("", pipeOpts...)

	d := driver.New(objects, pipe, vec, repo, driver.Config{
		VideosBucket: cfg.VideosBucket,
		FramesBucket: cfg.FramesBucket,
		TempDir:      cfg.TempDir,
	}, os.Stdout, logger)

	return &WorkerDeps{Catalog: repo, Driver: d}, nil
}

// initObjectStore creates the appropriate object store based on configuration.
func initObjectStore(cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Store(storage.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 store: %w", err)
		}
		logger.Info("S3 object store configured",
			slog.String("videos_bucket", cfg.VideosBucket),
			slog.String("frames_bucket", cfg.FramesBucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	logger.Info("local object store configured",
		slog.String("root", localStore.Root()),
	)
	return localStore, nil
}
