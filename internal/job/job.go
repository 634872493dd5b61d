// Package job provides the Job aggregate for video-extraction work and the
// in-process store that serializes all mutations to it. A Job tracks a fixed
// batch of work items, an append-only log, and a monotonic progress counter.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job is waiting for an available worker.
	StatusPending Status = "PENDING"
	// StatusRunning indicates the job's extraction subprocess is running.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true for COMPLETED and FAILED.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions defines which state transitions are allowed.
// PENDING and RUNNING may flip both ways so a retried job can re-queue;
// terminal states accept nothing.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusPending, StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ItemStatus represents the status of a single work item within a job.
type ItemStatus string

const (
	// ItemWaiting indicates the item has not started yet.
	ItemWaiting ItemStatus = "waiting"
	// ItemProcessing indicates the item is currently being extracted.
	ItemProcessing ItemStatus = "processing"
	// ItemSuccess indicates the item was extracted successfully.
	ItemSuccess ItemStatus = "success"
	// ItemFailed indicates the item extraction failed.
	ItemFailed ItemStatus = "failed"
)

// validItemTransitions mirrors validTransitions for per-item status.
// A failed item may move back to processing when it is retried.
var validItemTransitions = map[ItemStatus][]ItemStatus{
	ItemWaiting:    {ItemProcessing, ItemSuccess, ItemFailed},
	ItemProcessing: {ItemSuccess, ItemFailed},
	ItemFailed:     {ItemProcessing},
	ItemSuccess:    {},
}

func canTransitionItem(from, to ItemStatus) bool {
	for _, s := range validItemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WorkItem is one {platform, code} unit of work within a job.
type WorkItem struct {
	// Platform is the source platform, e.g. "instagram".
	Platform string `json:"platform"`
	// Code is the platform-specific short identifier for the video.
	Code string `json:"code"`
	// Status is the per-item extraction status.
	Status ItemStatus `json:"item_status"`
}

// LogLevel is the severity of a job log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelDebug LogLevel = "DEBUG"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// LogEntry is one append-only log line attached to a job.
type LogEntry struct {
	// Ts is when the entry was recorded.
	Ts time.Time `json:"ts"`
	// Level is the entry severity.
	Level LogLevel `json:"level"`
	// Msg is the log message.
	Msg string `json:"msg"`
}

// Job represents one extraction batch submitted through the HTTP API.
// Fields are owned by the Store; callers only ever see copies.
type Job struct {
	// ID is the unique identifier for this job.
	ID uuid.UUID
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100), monotonic.
	Progress int
	// Items contains the work items, fixed at creation.
	Items []WorkItem
	// Logs is the append-only log stream.
	Logs []LogEntry
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last patched.
	UpdatedAt time.Time
}

// clone creates a deep copy of the job for safe reads.
func (j *Job) clone() Job {
	items := make([]WorkItem, len(j.Items))
	copy(items, j.Items)
	logs := make([]LogEntry, len(j.Logs))
	copy(logs, j.Logs)

	c := *j
	c.Items = items
	c.Logs = logs
	return c
}

// ItemPatch updates the status of the item at Index.
type ItemPatch struct {
	Index  int
	Status ItemStatus
}

// Patch carries any non-empty subset of job mutations. All fields present are
// applied atomically and in order: status, log append, progress delta, item
// status. UpdatedAt is bumped on every successful application.
type Patch struct {
	// Status, when non-nil, requests a state transition. Transitions out of
	// a terminal state and other invalid transitions are silent no-ops.
	Status *Status
	// Log, when non-nil, is appended to the job's logs.
	Log *LogEntry
	// ProgressDelta is added to the current progress, clamped to [0, 100].
	// Negative values are ignored; progress never decreases.
	ProgressDelta int
	// Item, when non-nil, updates a single work item's status.
	Item *ItemPatch
}

// StatusPatch is a convenience constructor for a status-only patch.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

// LogPatch is a convenience constructor for a log-append patch.
func LogPatch(level LogLevel, msg string) Patch {
	return Patch{Log: &LogEntry{Ts: time.Now(), Level: level, Msg: msg}}
}

// apply mutates the job in place. Caller must hold the job's lock.
func (j *Job) apply(p Patch) {
	if p.Status != nil && *p.Status != j.Status {
		if canTransition(j.Status, *p.Status) {
			j.Status = *p.Status
		}
	}
	if p.Log != nil {
		entry := *p.Log
		if entry.Ts.IsZero() {
			entry.Ts = time.Now()
		}
		j.Logs = append(j.Logs, entry)
	}
	if p.ProgressDelta > 0 {
		j.Progress += p.ProgressDelta
		if j.Progress > 100 {
			j.Progress = 100
		}
	}
	if p.Item != nil && p.Item.Index >= 0 && p.Item.Index < len(j.Items) {
		item := &j.Items[p.Item.Index]
		if canTransitionItem(item.Status, p.Item.Status) {
			item.Status = p.Item.Status
		}
	}
	j.UpdatedAt = time.Now()
}
