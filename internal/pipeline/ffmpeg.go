package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/clipfarm/extractor/internal/embed"
)

// Compile-time check that FFmpegPipeline implements Pipeline.
var _ Pipeline = (*FFmpegPipeline)(nil)

// FFmpegPipeline implements Pipeline using the ffmpeg CLI. One invocation
// applies mpdecimate (near-duplicate dropping) and scene-change selection;
// frame timestamps are recovered from showinfo output on stderr.
type FFmpegPipeline struct {
	ffmpegPath     string
	embedder       embed.Embedder
	sceneThreshold float64
}

// PipelineOption configures an FFmpegPipeline.
type PipelineOption func(*FFmpegPipeline)

// WithEmbedder attaches a CLIP embedder; without one, frames are produced
// with nil embeddings.
func WithEmbedder(e embed.Embedder) PipelineOption {
	return func(p *FFmpegPipeline) {
		p.embedder = e
	}
}

// WithSceneThreshold sets the scene-change score a frame must exceed to be
// selected. Default 0.3.
func WithSceneThreshold(t float64) PipelineOption {
	return func(p *FFmpegPipeline) {
		p.sceneThreshold = t
	}
}

// NewFFmpegPipeline creates an FFmpegPipeline.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegPipeline(ffmpegPath string, opts ...PipelineOption) *FFmpegPipeline {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegPipeline{
		ffmpegPath:     ffmpegPath,
		sceneThreshold: 0.3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts deduplicated scene frames from videoPath into workDir,
// names them "<n>_<seconds>.png", and attaches CLIP embeddings when an
// embedder is configured.
func (p *FFmpegPipeline) Process(ctx context.Context, videoPath, workDir string) (*Result, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("input video: %w", err)
	}
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	seconds, err := p.extractFrames(ctx, videoPath, workDir)
	if err != nil {
		return nil, err
	}

	frames, err := renameFrames(workDir, seconds)
	if err != nil {
		return nil, err
	}

	if p.embedder != nil && len(frames) > 0 {
		if err := p.embedFrames(ctx, frames); err != nil {
			return nil, err
		}
	}

	return &Result{Frames: frames}, nil
}

// extractFrames runs ffmpeg once and returns the selected frames' timestamps
// in presentation order.
func (p *FFmpegPipeline) extractFrames(ctx context.Context, videoPath, workDir string) ([]float64, error) {
	filter := fmt.Sprintf("mpdecimate,select='gt(scene,%g)',showinfo", p.sceneThreshold)

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", videoPath,
		"-vf", filter,
		"-vsync", "vfr",
		"-hide_banner",
		filepath.Join(workDir, "raw_%04d.png"),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, tailOf(stderr.String()))
	}

	// showinfo writes one line per selected frame to stderr
	return parseShowinfoTimes(stderr.String()), nil
}

// showinfoRe matches the pts_time field of an ffmpeg showinfo line.
var showinfoRe = regexp.MustCompile(`Parsed_showinfo.*\bn:\s*\d+.*\bpts_time:([\d.]+)`)

// parseShowinfoTimes extracts frame timestamps from ffmpeg showinfo output.
func parseShowinfoTimes(output string) []float64 {
	matches := showinfoRe.FindAllStringSubmatch(output, -1)
	times := make([]float64, 0, len(matches))
	for _, m := range matches {
		if sec, err := strconv.ParseFloat(m[1], 64); err == nil {
			times = append(times, sec)
		}
	}
	return times
}

// renameFrames maps ffmpeg's raw_%04d.png outputs onto the frame naming
// contract "<n>_<seconds>.png" with two-decimal seconds.
func renameFrames(workDir string, seconds []float64) ([]Frame, error) {
	raw, err := filepath.Glob(filepath.Join(workDir, "raw_*.png"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(raw)

	// showinfo lines and rendered files should agree; if ffmpeg was
	// interrupted mid-frame, trust the shorter list.
	count := len(raw)
	if len(seconds) < count {
		count = len(seconds)
	}

	frames := make([]Frame, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%d_%.2f.png", i+1, seconds[i])
		dst := filepath.Join(workDir, name)
		if err := os.Rename(raw[i], dst); err != nil {
			return nil, fmt.Errorf("rename frame %d: %w", i+1, err)
		}
		frames = append(frames, Frame{Number: i + 1, Second: seconds[i], Path: dst})
	}
	return frames, nil
}

// embedFrames loads the rendered PNGs and fills in their CLIP vectors.
func (p *FFmpegPipeline) embedFrames(ctx context.Context, frames []Frame) error {
	images := make([][]byte, len(frames))
	for i, f := range frames {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read frame %d: %w", f.Number, err)
		}
		images[i] = data
	}

	vectors, err := p.embedder.EmbedImages(ctx, images)
	if err != nil {
		return fmt.Errorf("embed frames: %w", err)
	}
	for i := range frames {
		frames[i].Embedding = vectors[i]
	}
	return nil
}

// tailOf returns the last ~400 bytes of s for error messages.
func tailOf(s string) string {
	if len(s) > 400 {
		return s[len(s)-400:]
	}
	return s
}
