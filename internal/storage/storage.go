// Package storage provides object-store access for source videos and
// extracted frames, plus local scratch space for files in flight. It defines
// the ObjectStore port and implementations for S3 and local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrKeyNotFound is returned when the requested object does not exist.
var ErrKeyNotFound = errors.New("storage: key not found")

// ObjectStore defines the bucket operations the extraction driver consumes.
type ObjectStore interface {
	// Download returns a reader over the object at bucket/key.
	// Returns ErrKeyNotFound when the object does not exist.
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Upload writes data to bucket/key, replacing any existing object.
	// Deterministic keys make batch re-runs idempotent.
	Upload(ctx context.Context, bucket, key string, data io.Reader) error
}

// VideoKey is the object-store layout for source videos.
func VideoKey(platform, code string) string {
	return platform + "/" + code + "/video.mp4"
}

// FrameKey is the object-store layout for extracted frames. frameNumber is
// 1-based and frameSecond carries two-decimal precision.
func FrameKey(platform, code string, frameNumber int, frameSecond float64) string {
	return fmt.Sprintf("%s/%s/%d_%.2f.png", platform, code, frameNumber, frameSecond)
}
