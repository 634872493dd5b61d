package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/clipfarm/extractor/internal/pipeline"
	"github.com/clipfarm/extractor/internal/storage"
	"github.com/clipfarm/extractor/internal/vector"
)

// ErrItemsFailed is returned by Run when at least one item could not be
// processed; the subprocess maps it to a non-zero exit code.
var ErrItemsFailed = errors.New("driver: one or more items failed")

// VectorUpserter is the slice of the vector store the driver consumes.
type VectorUpserter interface {
	UpsertPoints(ctx context.Context, points []vector.Point) error
}

// ErrorSink records per-item failures the moment they occur.
type ErrorSink interface {
	RecordError(ctx context.Context, code, errText string) error
}

// Config carries the driver's bucket and scratch locations.
type Config struct {
	// VideosBucket holds source videos at <platform>/<code>/video.mp4.
	VideosBucket string
	// FramesBucket receives frames at <platform>/<code>/<n>_<sec>.png.
	FramesBucket string
	// TempDir is the scratch root for downloads and rendered frames.
	TempDir string
}

// Driver processes the items of one batch sequentially. GPU and disk
// pressure dominate a single extraction, so intra-batch parallelism stays at
// one; the control plane's pool bounds cross-batch parallelism.
type Driver struct {
	objects storage.ObjectStore
	pipe    pipeline.Pipeline
	vectors VectorUpserter
	errs    ErrorSink
	cfg     Config
	out     io.Writer
	logger  *slog.Logger
}

// New creates a Driver. out receives progress beacons and is normally the
// process stdout; the logger must write to stderr so beacons stay parseable.
func New(objects storage.ObjectStore, pipe pipeline.Pipeline, vectors VectorUpserter, errs ErrorSink, cfg Config, out io.Writer, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		objects: objects,
		pipe:    pipe,
		vectors: vectors,
		errs:    errs,
		cfg:     cfg,
		out:     out,
		logger:  logger,
	}
}

// Run processes every item in order, emitting one beacon per successful
// item. It returns ErrItemsFailed if any item failed; sibling items always
// continue.
func (d *Driver) Run(ctx context.Context, items []Item) error {
	succeeded := 0
	for i, item := range items {
		fmt.Fprintf(d.out, "processing %s/%s (%d/%d)\n", item.Platform, item.Code, i+1, len(items))

		if err := d.processItem(ctx, item); err != nil {
			d.recordFailure(ctx, item.Code, err)
			continue
		}

		succeeded++
		WriteBeacon(d.out, succeeded)
	}

	if succeeded < len(items) {
		return fmt.Errorf("%w: %d/%d succeeded", ErrItemsFailed, succeeded, len(items))
	}
	return nil
}

// processItem runs the full per-item pipeline: resolve media, extract
// frames, then upload frames and upsert embeddings. Both stores must have
// committed before the item counts as done; side effects of earlier items
// survive a later failure, and deterministic keys make re-runs safe.
func (d *Driver) processItem(ctx context.Context, item Item) error {
	videoPath, err := d.resolveVideo(ctx, item)
	if err != nil {
		return err
	}

	workDir := filepath.Join(d.cfg.TempDir, item.Platform, item.Code, "frames")
	result, err := d.pipe.Process(ctx, videoPath, workDir)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.uploadFrames(gctx, item, result.Frames)
	})
	g.Go(func() error {
		return d.upsertVectors(gctx, item, result.Frames)
	})
	return g.Wait()
}

// resolveVideo returns a local path for the item's video, downloading it
// from the videos bucket when it is not already on disk.
func (d *Driver) resolveVideo(ctx context.Context, item Item) (string, error) {
	local := filepath.Join(d.cfg.TempDir, item.Platform, item.Code, "video.mp4")
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	key := storage.VideoKey(item.Platform, item.Code)
	body, err := d.objects.Download(ctx, d.cfg.VideosBucket, key)
	if err != nil {
		return "", fmt.Errorf("fetch video: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0750); err != nil {
		return "", fmt.Errorf("create video dir: %w", err)
	}
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(local)
		return "", fmt.Errorf("write video file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close video file: %w", err)
	}
	return local, nil
}

// uploadFrames pushes the rendered frames to the frames bucket under their
// deterministic keys.
func (d *Driver) uploadFrames(ctx context.Context, item Item, frames []pipeline.Frame) error {
	for _, frame := range frames {
		f, err := os.Open(frame.Path)
		if err != nil {
			return fmt.Errorf("open frame %d: %w", frame.Number, err)
		}
		key := storage.FrameKey(item.Platform, item.Code, frame.Number, frame.Second)
		err = d.objects.Upload(ctx, d.cfg.FramesBucket, key, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("upload frame %d: %w", frame.Number, err)
		}
	}
	return nil
}

// upsertVectors writes the frame embeddings to the vector store.
func (d *Driver) upsertVectors(ctx context.Context, item Item, frames []pipeline.Frame) error {
	points := make([]vector.Point, 0, len(frames))
	for _, frame := range frames {
		if frame.Embedding == nil {
			continue
		}
		points = append(points, vector.Point{
			Platform:    item.Platform,
			VideoCode:   item.Code,
			FrameNumber: frame.Number,
			FrameSecond: frame.Second,
			Path:        storage.FrameKey(item.Platform, item.Code, frame.Number, frame.Second),
			Vector:      frame.Embedding,
		})
	}
	if err := d.vectors.UpsertPoints(ctx, points); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// recordFailure persists the item error and surfaces it on stderr, then the
// batch moves on to the next item.
func (d *Driver) recordFailure(ctx context.Context, code string, cause error) {
	d.logger.Error("item failed",
		slog.String("code", code),
		slog.String("error", cause.Error()),
	)
	if d.errs == nil {
		return
	}
	if err := d.errs.RecordError(ctx, code, cause.Error()); err != nil {
		d.logger.Error("failed to record item error",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
}
