package job

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Store is the in-process job store. It holds one lock per job so exactly one
// mutator applies a patch at a time, and every read returns a deep copy.
// Jobs are never removed within the process lifetime.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*managedJob
}

// managedJob pairs a job with its mutation lock. The lock is never held
// across I/O; patches are brief critical sections.
type managedJob struct {
	mu  sync.Mutex
	job Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*managedJob)}
}

// Create registers a new PENDING job over the given items and returns a
// snapshot of it. Item statuses are forced to waiting.
func (s *Store) Create(items []WorkItem) Job {
	now := time.Now()
	j := Job{
		ID:        uuid.New(),
		Status:    StatusPending,
		Items:     make([]WorkItem, len(items)),
		Logs:      []LogEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, item := range items {
		j.Items[i] = WorkItem{Platform: item.Platform, Code: item.Code, Status: ItemWaiting}
	}

	s.mu.Lock()
	s.jobs[j.ID] = &managedJob{job: j}
	s.mu.Unlock()

	return j.clone()
}

// Get returns a snapshot of the job, or false if the ID is unknown.
func (s *Store) Get(id uuid.UUID) (Job, bool) {
	s.mu.RLock()
	m, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return Job{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job.clone(), true
}

// Apply applies the patch to the job atomically. Readers never observe a
// half-applied patch. Returns ErrJobNotFound for unknown IDs, which callers
// should treat as a programming error: only the store hands out IDs.
func (s *Store) Apply(id uuid.UUID, p Patch) error {
	s.mu.RLock()
	m, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}

	m.mu.Lock()
	m.job.apply(p)
	m.mu.Unlock()
	return nil
}
