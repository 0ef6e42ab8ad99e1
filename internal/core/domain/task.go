package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeRescanDocuments re-runs duplicate pairing scoped to specific
	// documents, typically after an undo restored them
	TaskTypeRescanDocuments TaskType = "rescan_documents"
	// TaskTypeIngestContainer loads a repository container (space) into the
	// vector index
	TaskTypeIngestContainer TaskType = "ingest_container"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// TenantID is the tenant this task belongs to; workers never process a
	// task outside its tenant scope
	TenantID string `json:"tenant_id"`

	// Payload contains task-specific data
	// For rescan_documents: {"doc_ids": "id1,id2"}
	// For ingest_container: {"container_id": "SPACE", "limit": "50"}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with per-type defaults
func NewTask(taskType TaskType, tenantID string, payload map[string]string) *Task {
	now := time.Now()
	priority, maxAttempts := taskDefaults(taskType)
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		TenantID:     tenantID,
		Payload:      payload,
		Status:       TaskStatusPending,
		Priority:     priority,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// taskDefaults maps a task type to its priority and retry budget. A rescan
// is interactive work: an undo just restored documents and the pair cache is
// stale until it runs. Container ingests are bulk work that can wait.
func taskDefaults(taskType TaskType) (priority, maxAttempts int) {
	switch taskType {
	case TaskTypeRescanDocuments:
		return 10, 5
	default:
		return 0, 3
	}
}

// CanRetry reports whether the task has retry attempts remaining
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// MarkProcessing transitions the task to processing and records the attempt
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.Attempts++
	t.StartedAt = &now
	t.UpdatedAt = now
}

// MarkCompleted transitions the task to completed
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkFailed transitions the task to failed with the given reason
func (t *Task) MarkFailed(reason string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.Error = reason
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// Retry re-queues the task with a backoff before the next attempt
func (t *Task) Retry(reason string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.Error = reason
	t.StartedAt = nil
	t.ScheduledFor = now.Add(t.backoff())
	t.UpdatedAt = now
}

// backoff grows quadratically for bulk work and stays short for rescans,
// whose result the pairing view is waiting on.
func (t *Task) backoff() time.Duration {
	if t.Type == TaskTypeRescanDocuments {
		return time.Duration(t.Attempts) * 10 * time.Second
	}
	return time.Duration(t.Attempts*t.Attempts) * 30 * time.Second
}
