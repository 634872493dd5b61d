// Package batch implements the cursor-driven orchestrator that walks the
// source table in ID order, dispatches fixed-size batches to the extraction
// subprocess, reconciles results, and advances a crash-safe checkpoint.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Checkpoint persists the highest fully-processed source-row ID as a single
// ASCII decimal integer. It is the only durable state the control plane owns.
type Checkpoint struct {
	path string
}

// NewCheckpoint creates a checkpoint backed by the given file path.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

// Load returns the persisted cursor. A missing file means cursor 0; a
// file that does not parse is a fatal error, never silently reset.
func (c *Checkpoint) Load() (int64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	cursor, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt checkpoint %q: %w", c.path, err)
	}
	return cursor, nil
}

// Store atomically replaces the checkpoint with cursor, via a temp file and
// rename in the same directory.
func (c *Checkpoint) Store(cursor int64) error {
	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint_*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strconv.FormatInt(cursor, 10)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}
