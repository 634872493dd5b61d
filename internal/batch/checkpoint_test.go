package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpoint_LoadMissing(t *testing.T) {
	c := NewCheckpoint(filepath.Join(t.TempDir(), "checkpoint.txt"))

	cursor, err := c.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 0 {
		t.Errorf("missing checkpoint should load as 0, got %d", cursor)
	}
}

func TestCheckpoint_StoreThenLoad(t *testing.T) {
	c := NewCheckpoint(filepath.Join(t.TempDir(), "checkpoint.txt"))

	if err := c.Store(12345); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cursor, err := c.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 12345 {
		t.Errorf("expected cursor 12345, got %d", cursor)
	}
}

func TestCheckpoint_StoreReplaces(t *testing.T) {
	c := NewCheckpoint(filepath.Join(t.TempDir(), "checkpoint.txt"))

	for _, cursor := range []int64{10, 500, 999} {
		if err := c.Store(cursor); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	cursor, err := c.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 999 {
		t.Errorf("expected last stored cursor 999, got %d", cursor)
	}
}

func TestCheckpoint_FileIsPlainInteger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	c := NewCheckpoint(path)

	if err := c.Store(42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "42" {
		t.Errorf("expected file content %q, got %q", "42", string(data))
	}
}

func TestCheckpoint_LoadTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	if err := os.WriteFile(path, []byte("  7731\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cursor, err := NewCheckpoint(path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 7731 {
		t.Errorf("expected cursor 7731, got %d", cursor)
	}
}

func TestCheckpoint_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	if err := os.WriteFile(path, []byte("not a number"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewCheckpoint(path).Load(); err == nil {
		t.Fatal("corrupt checkpoint must be an error, not a silent reset")
	}
}

func TestCheckpoint_StoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewCheckpoint(filepath.Join(dir, "checkpoint.txt"))

	if err := c.Store(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the checkpoint file, found %d entries", len(entries))
	}
}
