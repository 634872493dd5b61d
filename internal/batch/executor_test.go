package batch

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/clipfarm/extractor/internal/driver"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available on windows")
	}
	path := filepath.Join(t.TempDir(), "pipeline.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestSubprocessExecutor_Success(t *testing.T) {
	// The child checks that JOB_INPUT made it through the environment.
	script := writeScript(t, `
case "$JOB_INPUT" in
  *abc123*) exit 0 ;;
  *) echo "missing JOB_INPUT" >&2; exit 1 ;;
esac
`)

	e := NewSubprocessExecutor(script, nil, false, nil)
	err := e.Execute([]driver.Item{{Platform: "instagram", Code: "abc123"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubprocessExecutor_NonZeroExit(t *testing.T) {
	script := writeScript(t, `
echo "disk full" >&2
exit 7
`)

	e := NewSubprocessExecutor(script, nil, false, nil)
	err := e.Execute([]driver.Item{{Platform: "instagram", Code: "abc123"}})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 7 {
		t.Errorf("expected exit code 7, got %d", exitErr.Code)
	}
	if !strings.Contains(exitErr.Stderr, "disk full") {
		t.Errorf("expected stderr tail in error, got %q", exitErr.Stderr)
	}
}

func TestSubprocessExecutor_SpawnFailure(t *testing.T) {
	e := NewSubprocessExecutor("/nonexistent/pipeline-binary", nil, false, nil)
	if err := e.Execute([]driver.Item{{Platform: "instagram", Code: "abc123"}}); err == nil {
		t.Fatal("expected spawn error")
	}
}

func TestSubprocessExecutor_OversizedStdoutLine(t *testing.T) {
	// A line past the scanner cap must not wedge Execute: the pipe is
	// drained past it and the clean exit is still reported as success.
	script := writeScript(t, `
head -c 2000000 /dev/zero | tr '\0' a
echo
echo "batch done"
exit 0
`)

	e := NewSubprocessExecutor(script, nil, false, nil)

	done := make(chan error, 1)
	go func() {
		done <- e.Execute([]driver.Item{{Platform: "instagram", Code: "abc123"}})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after an oversized stdout line")
	}
}

func TestSubprocessExecutor_EmptyEntrypoint(t *testing.T) {
	e := NewSubprocessExecutor("", nil, false, nil)
	err := e.Execute([]driver.Item{{Platform: "instagram", Code: "abc123"}})
	if !errors.Is(err, errEmptyEntrypoint) {
		t.Fatalf("expected empty entrypoint error, got %v", err)
	}
}
