package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipfarm/extractor/internal/catalog"
	"github.com/clipfarm/extractor/internal/driver"
)

// ErrPermanentFailures is returned when the retry phase exhausts its rounds
// with rows still failing; the process maps it to exit code 1.
var ErrPermanentFailures = errors.New("batch: retry phase ended with permanent failures")

// Source is the slice of the source table the orchestrator consumes.
type Source interface {
	NextBatch(ctx context.Context, cursorID int64, limit int) ([]catalog.SourceRow, error)
	MarkExtracted(ctx context.Context, ids []int64) error
}

// Reconciler verifies a finished batch against the vector store and marks
// verified rows as embedded.
type Reconciler interface {
	VerifyBatch(ctx context.Context, codes []string) map[string]bool
	MarkEmbedded(ctx context.Context, codes []string) error
}

// idleProbes is how many consecutive empty batches the main pass tolerates
// before concluding the table is drained.
const idleProbes = 3

// Orchestrator walks the source table and drives extraction batches.
type Orchestrator struct {
	source      Source
	reconciler  Reconciler
	executor    Executor
	checkpoint  *Checkpoint
	retries     *RetrySet
	batchSize   int
	delay       time.Duration
	maxRetries  int
	backoffUnit time.Duration
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBackoffUnit scales the retry backoff. Default one second.
func WithBackoffUnit(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.backoffUnit = d
	}
}

// New creates an Orchestrator.
func New(source Source, reconciler Reconciler, executor Executor, checkpoint *Checkpoint, batchSize int, delay time.Duration, maxRetries int, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize < 1 {
		batchSize = 1
	}
	o := &Orchestrator{
		source:      source,
		reconciler:  reconciler,
		executor:    executor,
		checkpoint:  checkpoint,
		retries:     NewRetrySet(),
		batchSize:   batchSize,
		delay:       delay,
		maxRetries:  maxRetries,
		backoffUnit: time.Second,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the main pass and then the retry phase. Cancelling ctx stops
// new batches; the in-flight subprocess always finishes. Returns
// ErrPermanentFailures when rows remain failed after all retry rounds.
func (o *Orchestrator) Run(ctx context.Context) error {
	cursor, err := o.checkpoint.Load()
	if err != nil {
		return err
	}
	o.logger.Info("orchestrator starting",
		slog.Int64("cursor", cursor),
		slog.Int("batch_size", o.batchSize),
	)

	if err := o.mainPass(ctx, cursor); err != nil {
		return err
	}

	if ctx.Err() != nil {
		// Shutdown: the checkpoint is already durable; pending retries are
		// re-derived from is_extracted=false on the next run.
		if o.retries.Len() > 0 {
			o.logger.Warn("shutting down with pending retries",
				slog.Int("pending", o.retries.Len()),
			)
		}
		return nil
	}

	return o.retryPhase(ctx)
}

// mainPass walks the table in ID order until it drains or ctx is cancelled.
// The in-memory cursor always moves past a dispatched batch; the durable
// checkpoint advances only after the batch fully succeeded, so a crash
// replays at most the unconfirmed batches.
func (o *Orchestrator) mainPass(ctx context.Context, cursor int64) error {
	idle := 0
	for ctx.Err() == nil {
		rows, err := o.source.NextBatch(ctx, cursor, o.batchSize)
		if err != nil {
			return fmt.Errorf("select batch: %w", err)
		}

		if len(rows) == 0 {
			idle++
			if idle >= idleProbes {
				o.logger.Info("source table drained")
				return nil
			}
			o.sleep(ctx)
			continue
		}
		idle = 0

		maxID := rows[len(rows)-1].ID
		if err := o.runBatch(ctx, rows); err == nil {
			if err := o.checkpoint.Store(maxID); err != nil {
				return fmt.Errorf("persist checkpoint: %w", err)
			}
		}
		cursor = maxID

		o.sleep(ctx)
	}
	return nil
}

// runBatch dispatches one batch and reconciles its outcome. A non-nil error
// means the checkpoint must not advance.
func (o *Orchestrator) runBatch(ctx context.Context, rows []catalog.SourceRow) error {
	items := make([]driver.Item, len(rows))
	ids := make([]int64, len(rows))
	codes := make([]string, len(rows))
	for i, row := range rows {
		items[i] = driver.Item{Platform: row.Platform, Code: row.Code}
		ids[i] = row.ID
		codes[i] = row.Code
	}

	o.logger.Info("dispatching batch",
		slog.Int64("from_id", rows[0].ID),
		slog.Int64("to_id", rows[len(rows)-1].ID),
		slog.Int("items", len(rows)),
	)

	if err := o.executor.Execute(items); err != nil {
		o.logger.Error("batch failed",
			slog.Int64("from_id", rows[0].ID),
			slog.String("error", err.Error()),
		)
		o.retries.Add(rows...)
		return err
	}

	if err := o.source.MarkExtracted(ctx, ids); err != nil {
		o.retries.Add(rows...)
		return fmt.Errorf("mark extracted: %w", err)
	}

	verified := o.reconciler.VerifyBatch(ctx, codes)
	embedded := make([]string, 0, len(codes))
	for _, code := range codes {
		if verified[code] {
			embedded = append(embedded, code)
		}
	}
	if err := o.reconciler.MarkEmbedded(ctx, embedded); err != nil {
		o.logger.Error("mark embedded failed", slog.String("error", err.Error()))
	}

	return nil
}

// retryPhase drains the retry set with single-row batches and exponential
// backoff. Rows that keep failing after maxRetries rounds are logged as
// permanently failed.
func (o *Orchestrator) retryPhase(ctx context.Context) error {
	for round := 1; round <= o.maxRetries && o.retries.Len() > 0; round++ {
		backoff := retryBackoff(round, o.backoffUnit)
		o.logger.Info("retry round",
			slog.Int("round", round),
			slog.Int("pending", o.retries.Len()),
			slog.Duration("backoff", backoff),
		)

		for _, row := range o.retries.Rows() {
			if !sleepCtx(ctx, backoff) {
				return nil
			}

			// No checkpoint advance here: the retried row sits behind the
			// cursor and is filtered out of re-scans by its extracted mark.
			if err := o.runBatch(ctx, []catalog.SourceRow{row}); err != nil {
				continue
			}
			o.retries.Remove(row.Code)
		}
	}

	if o.retries.Len() > 0 {
		for _, row := range o.retries.Rows() {
			o.logger.Error("permanently failed",
				slog.String("code", row.Code),
				slog.Int64("id", row.ID),
			)
		}
		return fmt.Errorf("%w: %d rows", ErrPermanentFailures, o.retries.Len())
	}
	return nil
}

func (o *Orchestrator) sleep(ctx context.Context) {
	sleepCtx(ctx, o.delay)
}

// retryBackoff is min(2^round, 30) units.
func retryBackoff(round int, unit time.Duration) time.Duration {
	n := int64(1) << round
	if n > 30 {
		n = 30
	}
	return time.Duration(n) * unit
}

// sleepCtx sleeps for d or until ctx is done; returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
