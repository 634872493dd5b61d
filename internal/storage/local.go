package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check that LocalStore implements ObjectStore.
var _ ObjectStore = (*LocalStore)(nil)

// LocalStore implements ObjectStore on local disk, mapping buckets to
// subdirectories of a root. Used for development and in tests; production
// wires S3Store.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root. If root is empty, a
// directory under os.TempDir() is used. The root is created if missing.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "extractor")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the storage root directory.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

// Download returns a reader over the object at bucket/key.
func (s *LocalStore) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(s.path(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrKeyNotFound, bucket, key)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// Upload writes data to bucket/key, creating parent directories as needed.
func (s *LocalStore) Upload(ctx context.Context, bucket, key string, data io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	// Write-to-temp-then-rename keeps concurrent readers off half-written
	// objects.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload_*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

// SaveTemp copies data into a scratch file under dir and returns its path.
// The name is used as a base for the filename with a unique suffix.
func SaveTemp(dir, name string, data io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	base := strings.ReplaceAll(name, string(os.PathSeparator), "_")
	f, err := os.CreateTemp(dir, base+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return fileName, nil
}
