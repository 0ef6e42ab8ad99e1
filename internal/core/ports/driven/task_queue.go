package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// TaskQueue handles background task queuing and processing.
// Implementations can use Redis (preferred) or Postgres (fallback).
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	// The task will be picked up by a worker based on priority and scheduled time.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue retrieves the next available task for processing.
	// The task is marked as processing and will not be returned to other workers.
	// Returns nil, nil if no tasks are available (for non-blocking implementations).
	Dequeue(ctx context.Context) (*domain.Task, error)

	// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
	// Returns nil, nil if timeout is reached with no tasks available.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack indicates task processing failed and should be retried.
	// If max retries exceeded, the task is moved to the failed state.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// ListTasks retrieves tasks matching the filter criteria.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// TaskFilter specifies criteria for listing tasks
type TaskFilter struct {
	// TenantID filters by tenant (required)
	TenantID string

	// Status filters by task status (optional, empty means all)
	Status domain.TaskStatus

	// Type filters by task type (optional, empty means all)
	Type domain.TaskType

	// Limit is the maximum number of tasks to return
	Limit int

	// Offset is the number of tasks to skip (for pagination)
	Offset int
}
