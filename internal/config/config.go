// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrDatabaseURLRequired is returned when DATABASE_URL is not set.
	ErrDatabaseURLRequired = errors.New("config: DATABASE_URL is required")
	// ErrPipelineEntrypointRequired is returned when PIPELINE_ENTRYPOINT is not set.
	ErrPipelineEntrypointRequired = errors.New("config: PIPELINE_ENTRYPOINT is required")
	// ErrVectorURLRequired is returned when VECTOR_URL is not set.
	ErrVectorURLRequired = errors.New("config: VECTOR_URL is required")
)

// Config holds all configuration for the control plane binaries.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Concurrency settings
	MaxParallelJobs     int `env:"MAX_PARALLEL_JOBS, default=2" json:"max_parallel_jobs"`
	MaxVideosPerRequest int `env:"MAX_VIDEOS_PER_REQUEST, default=10" json:"max_videos_per_request"`

	// Batch orchestrator settings
	BatchSize          int    `env:"BATCH_SIZE, default=50" json:"batch_size"`
	InterBatchDelaySec int    `env:"INTER_BATCH_DELAY_SEC, default=5" json:"inter_batch_delay_sec"`
	MaxRetries         int    `env:"MAX_RETRIES, default=3" json:"max_retries"`
	CheckpointFile     string `env:"CHECKPOINT_FILE, default=extract_checkpoint.txt" json:"checkpoint_file"`

	// Extraction subprocess command; split on whitespace, first token is the binary.
	PipelineEntrypoint string `env:"PIPELINE_ENTRYPOINT, required" json:"pipeline_entrypoint"`

	// Source database
	DatabaseURL string `env:"DATABASE_URL, required" json:"-"` // Masked in JSON

	// Vector store settings
	VectorURL        string `env:"VECTOR_URL, required" json:"vector_url"`
	VectorAPIKey     string `env:"VECTOR_API_KEY" json:"-"` // Masked in JSON
	VectorCollection string `env:"VECTOR_COLLECTION, default=watched_frames" json:"vector_collection"`

	// CLIP embedding service
	EmbedURL string `env:"EMBED_URL" json:"embed_url,omitempty"`

	// Object store settings
	VideosBucket       string `env:"VIDEOS_BUCKET" json:"videos_bucket,omitempty"`
	FramesBucket       string `env:"FRAMES_BUCKET" json:"frames_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Scratch space for downloaded videos and extracted frames
	TempDir string `env:"TEMP_DIR, default=/tmp/extractor" json:"temp_dir"`

	// When true, child stdout lines are echoed to the host log sink.
	DebugPipeline bool `env:"DEBUG_PIPELINE" json:"debug_pipeline"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if object-store configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.VideosBucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "DATABASE_URL") {
			return nil, ErrDatabaseURLRequired
		}
		if strings.Contains(err.Error(), "PIPELINE_ENTRYPOINT") {
			return nil, ErrPipelineEntrypointRequired
		}
		if strings.Contains(err.Error(), "VECTOR_URL") {
			return nil, ErrVectorURLRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURLRequired
	}
	if c.PipelineEntrypoint == "" {
		return ErrPipelineEntrypointRequired
	}
	if c.VectorURL == "" {
		return ErrVectorURLRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxParallelJobs: %d, MaxVideosPerRequest: %d, BatchSize: %d, InterBatchDelaySec: %d, MaxRetries: %d, CheckpointFile: %s, PipelineEntrypoint: %s, VectorURL: %s, VectorCollection: %s, VideosBucket: %s, FramesBucket: %s, S3Region: %s, TempDir: %s, DebugPipeline: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxParallelJobs,
		c.MaxVideosPerRequest,
		c.BatchSize,
		c.InterBatchDelaySec,
		c.MaxRetries,
		c.CheckpointFile,
		c.PipelineEntrypoint,
		c.VectorURL,
		c.VectorCollection,
		c.VideosBucket,
		c.FramesBucket,
		c.S3Region,
		c.TempDir,
		c.DebugPipeline,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
