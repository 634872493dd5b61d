package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestLocalStore_UploadDownload(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	key := VideoKey("instagram", "abc123")
	err = store.Upload(ctx, "videos", key, bytes.NewReader([]byte("mp4 bytes")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, err := store.Download(ctx, "videos", key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "mp4 bytes" {
		t.Errorf("expected round-tripped content, got %q", data)
	}
}

func TestLocalStore_UploadReplaces(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	_ = store.Upload(ctx, "frames", "k", strings.NewReader("old"))
	_ = store.Upload(ctx, "frames", "k", strings.NewReader("new"))

	body, err := store.Download(ctx, "frames", "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "new" {
		t.Errorf("expected replaced content, got %q", data)
	}
}

func TestLocalStore_DownloadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.Download(context.Background(), "videos", "ghost/key.png")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Upload(ctx, "b", "k", strings.NewReader("x")); err == nil {
		t.Error("expected error for cancelled upload")
	}
	if _, err := store.Download(ctx, "b", "k"); err == nil {
		t.Error("expected error for cancelled download")
	}
}

func TestSaveTemp(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveTemp(dir, "video.mp4", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("expected saved content, got %q", data)
	}
}

func TestVideoKey(t *testing.T) {
	if got := VideoKey("instagram", "abc123"); got != "instagram/abc123/video.mp4" {
		t.Errorf("unexpected video key: %s", got)
	}
}

func TestFrameKey(t *testing.T) {
	if got := FrameKey("instagram", "abc123", 3, 12.5); got != "instagram/abc123/3_12.50.png" {
		t.Errorf("unexpected frame key: %s", got)
	}
}
