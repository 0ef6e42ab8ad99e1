// Package postgres provides a task queue on the primary database for
// deployments that run without Redis. Claims use FOR UPDATE SKIP LOCKED so
// concurrent workers never double-process a task.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*Queue)(nil)

// abandonedAfter is how long a task may sit in processing before it is
// assumed orphaned by a crashed worker and handed back out.
const abandonedAfter = 5 * time.Minute

const taskColumns = `id, type, tenant_id, payload, status, priority,
	attempts, max_attempts, error, created_at, updated_at,
	started_at, completed_at, scheduled_for`

// Queue implements TaskQueue on the tasks table. The table is created by the
// schema applied at startup.
type Queue struct {
	db *sql.DB
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue persists the task as pending. Scheduling and priority live on the
// row itself: the claim query orders by them, so a rescan inserted after a
// bulk ingest is still claimed first.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if err := q.insertTask(ctx, q.db, task); err != nil {
		return err
	}
	return nil
}

// EnqueueBatch inserts all tasks in one transaction, so a rescan fanning out
// over many documents is either fully queued or not at all.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, task := range tasks {
		if task == nil {
			return errors.New("task is nil")
		}
		if err := q.insertTask(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (q *Queue) insertTask(ctx context.Context, db execer, task *domain.Task) error {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, type, tenant_id, payload, status, priority,
			attempts, max_attempts, error, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID, task.Type, task.TenantID, payload, task.Status, task.Priority,
		task.Attempts, task.MaxAttempts, task.Error,
		task.CreatedAt, task.UpdatedAt, task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout claims the next due task, polling up to timeout seconds
// when the queue is empty. Orphaned processing tasks are reclaimed first.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	_ = q.releaseAbandoned(ctx)

	task, err := q.claim(ctx)
	if err != nil || task != nil {
		return task, err
	}
	if timeout <= 0 {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, nil
	case <-time.After(time.Duration(timeout) * time.Second):
		return q.claim(ctx)
	}
}

// claim atomically selects and marks the next pending task. The ordering
// mirrors idx_tasks_pending: urgent work (rescans) before bulk ingests, then
// oldest due first.
func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = $1 AND scheduled_for <= now()
		ORDER BY priority DESC, scheduled_for ASC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		domain.TaskStatusPending,
	)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.MarkProcessing()
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, attempts = $2, started_at = $3, updated_at = $4
		WHERE id = $5`,
		task.Status, task.Attempts, task.StartedAt, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark task %s processing: %w", task.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return task, nil
}

// releaseAbandoned hands tasks back to pending when their worker went quiet.
// The attempt already counted when the task was claimed, so a crash-looping
// task still exhausts its retry budget.
func (q *Queue) releaseAbandoned(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, started_at = NULL, updated_at = now()
		WHERE status = $2 AND started_at < now() - $3::interval`,
		domain.TaskStatusPending,
		domain.TaskStatusProcessing,
		fmt.Sprintf("%d seconds", int(abandonedAfter.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to release abandoned tasks: %w", err)
	}
	return nil
}

func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}

	task.MarkCompleted()
	return q.saveOutcome(ctx, task)
}

// Nack records a failure. The retry decision and backoff are the task's own:
// rescans retry quickly, bulk ingests back off quadratically.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}

	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return q.saveOutcome(ctx, task)
}

func (q *Queue) saveOutcome(ctx context.Context, task *domain.Task) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error = $2, started_at = $3, completed_at = $4,
		    scheduled_for = $5, updated_at = $6
		WHERE id = $7`,
		task.Status, task.Error, task.StartedAt, task.CompletedAt,
		task.ScheduledFor, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns nil, nil when the task does not exist.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns a tenant's tasks, newest first.
func (q *Queue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	if filter.TenantID == "" {
		return nil, errors.New("tenant id is required")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tenant_id = $1`
	args := []any{filter.TenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op: the connection pool is owned by the runtime.
func (q *Queue) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID, &task.Type, &task.TenantID, &payload, &task.Status,
		&task.Priority, &task.Attempts, &task.MaxAttempts, &task.Error,
		&task.CreatedAt, &task.UpdatedAt, &startedAt, &completedAt,
		&task.ScheduledFor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
		}
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
