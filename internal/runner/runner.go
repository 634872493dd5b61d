// Package runner spawns one extraction subprocess per job, streams its
// stdout into the job store line by line, and maps the exit status to the
// job's terminal state.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/clipfarm/extractor/internal/driver"
	"github.com/clipfarm/extractor/internal/job"
	"github.com/clipfarm/extractor/internal/pool"
)

// errEmptyEntrypoint is surfaced as a spawn-phase failure when the
// extraction command has no tokens.
var errEmptyEntrypoint = errors.New("runner: empty extraction entrypoint")

// Runner executes extraction jobs against the job store. It never retries:
// retries belong to the batch orchestrator or the HTTP client.
type Runner struct {
	store   *job.Store
	command []string
	env     []string
	debug   bool
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnv appends extra environment entries ("KEY=value") passed to every
// subprocess, typically object-store credentials.
func WithEnv(env []string) Option {
	return func(r *Runner) {
		r.env = env
	}
}

// WithDebugPipeline echoes every child stdout line to the host log sink.
func WithDebugPipeline(enabled bool) Option {
	return func(r *Runner) {
		r.debug = enabled
	}
}

// New creates a Runner. entrypoint is the extraction command, split on
// whitespace; the first token is the binary.
func New(store *job.Store, entrypoint string, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		store:   store,
		command: strings.Fields(entrypoint),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Job adapts Run into a pool.JobFunc for submission. The job must already
// exist in the store. The context is accepted for the pool contract; the
// baseline runner has no per-job deadline, in-flight subprocesses finish.
func (r *Runner) Job(id uuid.UUID, items []job.WorkItem) pool.JobFunc {
	return func(_ context.Context) (pool.RunResult, error) {
		return r.Run(id, items)
	}
}

// Run executes the extraction subprocess for one job and returns its
// terminal result. All observable state lands in the job store as it is
// produced; the return value mirrors it for the submission future.
func (r *Runner) Run(id uuid.UUID, items []job.WorkItem) (pool.RunResult, error) {
	r.patch(id, job.StatusPatch(job.StatusPending))
	r.patch(id, job.LogPatch(job.LevelInfo, "queued"))

	input := make([]driver.Item, len(items))
	for i, item := range items {
		input[i] = driver.Item{Platform: item.Platform, Code: item.Code}
	}
	payload, err := driver.EncodeJobInput(input)
	if err != nil {
		return r.fail(id, pool.RunResult{ExitCode: -1}, fmt.Errorf("encode job input: %w", err))
	}
	if len(r.command) == 0 {
		return r.fail(id, pool.RunResult{ExitCode: -1}, errEmptyEntrypoint)
	}

	r.patch(id, job.StatusPatch(job.StatusRunning))
	r.patch(id, job.LogPatch(job.LevelInfo, "started"))
	for i := range items {
		r.patch(id, job.Patch{Item: &job.ItemPatch{Index: i, Status: job.ItemProcessing}})
	}

	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Env = append(cmd.Env, driver.EnvJobInput+"="+payload)
	if r.debug {
		cmd.Env = append(cmd.Env, driver.EnvDebugPipeline+"=1")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.fail(id, pool.RunResult{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err))
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return r.fail(id, pool.RunResult{ExitCode: -1}, fmt.Errorf("start subprocess: %w", err))
	}

	// Stream stdout line by line; progress must reach the store as it is
	// produced, never buffered until EOF.
	progress := newTracker(len(items))
	var stdoutBuf strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stdoutBuf.WriteString(line)
		stdoutBuf.WriteByte('\n')

		r.patch(id, job.LogPatch(job.LevelInfo, line))
		if r.debug {
			r.logger.Info("pipeline", slog.String("job_id", id.String()), slog.String("line", line))
		}
		prevDone := progress.done
		if delta := progress.observe(line); delta > 0 {
			r.patch(id, job.Patch{ProgressDelta: delta})
		}
		// Items completed by this line flip to success in order.
		for i := prevDone; i < progress.done && i < len(items); i++ {
			r.patch(id, job.Patch{Item: &job.ItemPatch{Index: i, Status: job.ItemSuccess}})
		}
	}
	if err := scanner.Err(); err != nil {
		// An oversized line stops the scanner mid-stream. The rest of the
		// pipe must still be drained or the child blocks on write and Wait
		// never returns.
		r.patch(id, job.LogPatch(job.LevelWarn, fmt.Sprintf("stdout stream truncated: %v", err)))
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()

	// Stderr is drained after stdout closes; every line becomes an ERROR
	// log entry on the job.
	stderr := stderrBuf.String()
	for _, line := range strings.Split(strings.TrimRight(stderr, "\n"), "\n") {
		if line != "" {
			r.patch(id, job.LogPatch(job.LevelError, line))
		}
	}

	result := pool.RunResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdoutBuf.String(),
		Stderr:   stderr,
	}

	if waitErr == nil {
		r.patch(id, job.Patch{ProgressDelta: progress.remaining()})
		for i := range items {
			r.patch(id, job.Patch{Item: &job.ItemPatch{Index: i, Status: job.ItemSuccess}})
		}
		r.patch(id, job.StatusPatch(job.StatusCompleted))
		r.patch(id, job.LogPatch(job.LevelInfo,
			fmt.Sprintf("completed: %d/%d items", progress.done, len(items))))
		return result, nil
	}

	// Non-zero exit: progress keeps its last observed value on purpose,
	// partial progress is user-visible signal.
	msg := fmt.Sprintf("extraction failed with exit code %d", result.ExitCode)
	if tail := lastLine(stderr); tail != "" {
		msg = fmt.Sprintf("%s: %s", msg, tail)
	}
	for i := range items {
		// No-op for items already marked success.
		r.patch(id, job.Patch{Item: &job.ItemPatch{Index: i, Status: job.ItemFailed}})
	}
	r.patch(id, job.StatusPatch(job.StatusFailed))
	r.patch(id, job.LogPatch(job.LevelError, msg))
	return result, nil
}

// fail records a spawn-phase failure that produced no subprocess.
func (r *Runner) fail(id uuid.UUID, res pool.RunResult, err error) (pool.RunResult, error) {
	r.patch(id, job.StatusPatch(job.StatusFailed))
	r.patch(id, job.LogPatch(job.LevelError, err.Error()))
	return res, err
}

func (r *Runner) patch(id uuid.UUID, p job.Patch) {
	if err := r.store.Apply(id, p); err != nil {
		// Only the store hands out IDs, so this is a programming error.
		r.logger.Error("job patch failed",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}
