// Package pipeline defines the media-extraction collaborator contract driven
// by the per-batch driver, and an ffmpeg implementation of it: decode,
// duplicate-frame dropping, scene-change frame selection and CLIP embedding.
package pipeline

import "context"

// Frame is one selected scene frame of a video.
type Frame struct {
	// Number is the 1-based frame index within the selection.
	Number int
	// Second is the frame timestamp within the video.
	Second float64
	// Path is the local file path of the rendered PNG.
	Path string
	// Embedding is the CLIP vector, nil when embedding is disabled.
	Embedding []float32
}

// Result is the output of processing one video.
type Result struct {
	// Frames are the selected frames in presentation order.
	Frames []Frame
}

// Pipeline processes one local video file into deduplicated scene frames.
type Pipeline interface {
	// Process decodes videoPath and writes the selected frames into workDir.
	Process(ctx context.Context, videoPath, workDir string) (*Result, error)
}
