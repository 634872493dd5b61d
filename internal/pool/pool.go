// Package pool implements the bounded admission layer for extraction jobs:
// an unbounded FIFO submission queue feeding a fixed set of worker
// goroutines, each of which holds a GPU slot for the duration of one job.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrShutDown is returned for submissions after Stop and delivered to
// futures that were abandoned by shutdown.
var ErrShutDown = errors.New("pool: shut down")

// RunResult is the terminal result of one job invocation.
type RunResult struct {
	// ExitCode is the subprocess exit code, -1 when the process never ran.
	ExitCode int
	// Stdout is the captured standard output, possibly truncated by the runner.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
}

// JobFunc is the unit of work dispatched to a worker. It is invoked on a
// goroutine suitable for blocking subprocess I/O.
type JobFunc func(ctx context.Context) (RunResult, error)

// Future is the caller's handle on a submitted job's terminal result.
type Future struct {
	done chan struct{}
	once sync.Once
	res  RunResult
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(res RunResult, err error) {
	f.once.Do(func() {
		f.res = res
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the job reaches a terminal result or ctx is done.
func (f *Future) Wait(ctx context.Context) (RunResult, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return RunResult{ExitCode: -1}, ctx.Err()
	}
}

// Done returns a channel closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

type invocation struct {
	fn  JobFunc
	fut *Future
}

// Manager owns the submission queue, the worker goroutines and the GPU
// semaphore. Pool size and GPU slot count are equal today; the semaphore is
// acquired explicitly around the job call so the two can diverge later.
type Manager struct {
	size  int
	grace time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*invocation
	inflight map[*Future]struct{}
	started  bool
	stopped  bool

	gpu chan struct{}
	wg  sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithStopGrace sets how long Stop waits for in-flight jobs before
// abandoning their futures with ErrShutDown. Default 30 seconds.
func WithStopGrace(d time.Duration) Option {
	return func(m *Manager) {
		m.grace = d
	}
}

// NewManager creates a Manager with the given worker count. Sizes below one
// are raised to one.
func NewManager(size int, opts ...Option) *Manager {
	if size < 1 {
		size = 1
	}
	m := &Manager{
		size:     size,
		grace:    30 * time.Second,
		inflight: make(map[*Future]struct{}),
		gpu:      make(chan struct{}, size),
	}
	m.cond = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start spawns the worker goroutines. Calling Start twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	for i := 0; i < m.size; i++ {
		m.wg.Add(1)
		go m.workerLoop()
	}
}

// Submit enqueues a job invocation and returns its future. The queue is
// unbounded: submissions beyond the pool size wait their turn, they are
// never rejected. Returns ErrShutDown after Stop.
func (m *Manager) Submit(fn JobFunc) (*Future, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrShutDown
	}
	fut := newFuture()
	m.queue = append(m.queue, &invocation{fn: fn, fut: fut})
	m.cond.Signal()
	return fut, nil
}

// QueueLen reports the number of invocations waiting for a worker.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Stop rejects further submissions, fails every queued invocation with
// ErrShutDown, and waits up to the configured grace period for in-flight
// jobs. Futures still running when the grace expires are completed with
// ErrShutDown; their subprocesses are left to finish on their own.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	pending := m.queue
	m.queue = nil
	m.cond.Broadcast()
	m.mu.Unlock()

	for _, inv := range pending {
		inv.fut.complete(RunResult{ExitCode: -1}, ErrShutDown)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.grace):
		// In-flight jobs outlived the grace period. Their futures are
		// resolved now so callers can return; completion is once-only, so
		// the worker's eventual natural completion is a no-op.
		m.mu.Lock()
		for fut := range m.inflight {
			fut.complete(RunResult{ExitCode: -1}, ErrShutDown)
		}
		m.mu.Unlock()
	}
}

// dequeue blocks until an invocation is available or the manager stops.
// Returns nil on shutdown. FIFO order is preserved.
func (m *Manager) dequeue() *invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.stopped {
		m.cond.Wait()
	}
	if len(m.queue) == 0 {
		return nil
	}
	inv := m.queue[0]
	m.queue = m.queue[1:]
	return inv
}

// workerLoop is the body of each of the N worker goroutines.
func (m *Manager) workerLoop() {
	defer m.wg.Done()
	for {
		inv := m.dequeue()
		if inv == nil {
			return
		}

		m.mu.Lock()
		m.inflight[inv.fut] = struct{}{}
		m.mu.Unlock()

		m.acquireGPUSlot()
		res, err := inv.fn(context.Background())
		inv.fut.complete(res, err)
		m.releaseGPUSlot()

		m.mu.Lock()
		delete(m.inflight, inv.fut)
		m.mu.Unlock()
	}
}

// acquireGPUSlot takes one permit from the GPU semaphore. With slot count
// equal to pool size this never blocks, but the job call stays bracketed so
// the counts can be decoupled without touching the workers.
func (m *Manager) acquireGPUSlot() {
	m.gpu <- struct{}{}
}

func (m *Manager) releaseGPUSlot() {
	<-m.gpu
}
