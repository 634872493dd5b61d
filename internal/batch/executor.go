package batch

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/clipfarm/extractor/internal/driver"
)

// Executor runs one extraction batch to completion and reports its outcome
// through the returned error. The orchestrator only consumes the aggregate
// result; per-item errors are persisted by the subprocess itself.
type Executor interface {
	Execute(items []driver.Item) error
}

// ExitError carries the subprocess exit code for a failed batch.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("batch exited with code %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("batch exited with code %d", e.Code)
}

// errEmptyEntrypoint is returned when the configured extraction entrypoint
// has no tokens.
var errEmptyEntrypoint = errors.New("batch: empty extraction entrypoint")

// Compile-time check that SubprocessExecutor implements Executor.
var _ Executor = (*SubprocessExecutor)(nil)

// SubprocessExecutor spawns the per-batch driver as a subprocess with
// JOB_INPUT in the environment and streams its stdout to the host log sink.
// The child is never killed on shutdown: an in-flight batch represents
// already-committed work and is allowed to finish.
type SubprocessExecutor struct {
	command []string
	env     []string
	debug   bool
	logger  *slog.Logger
}

// NewSubprocessExecutor creates an executor for the configured extraction
// entrypoint. The command is split on whitespace; the first token is the
// binary.
func NewSubprocessExecutor(entrypoint string, env []string, debug bool, logger *slog.Logger) *SubprocessExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessExecutor{
		command: strings.Fields(entrypoint),
		env:     env,
		debug:   debug,
		logger:  logger,
	}
}

// Execute runs one batch and blocks until the subprocess exits.
func (e *SubprocessExecutor) Execute(items []driver.Item) error {
	if len(e.command) == 0 {
		return errEmptyEntrypoint
	}

	payload, err := driver.EncodeJobInput(items)
	if err != nil {
		return fmt.Errorf("encode job input: %w", err)
	}

	cmd := exec.Command(e.command[0], e.command[1:]...)
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Env = append(cmd.Env, driver.EnvJobInput+"="+payload)
	if e.debug {
		cmd.Env = append(cmd.Env, driver.EnvDebugPipeline+"=1")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start batch subprocess: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e.logger.Info("batch", slog.String("line", scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		// The pipe must be drained past an oversized line or the child
		// blocks on write and Wait never returns.
		e.logger.Warn("batch stdout truncated", slog.String("error", err.Error()))
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		return &ExitError{
			Code:   cmd.ProcessState.ExitCode(),
			Stderr: lastStderrLine(stderrBuf.String()),
		}
	}
	return nil
}

func lastStderrLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}
