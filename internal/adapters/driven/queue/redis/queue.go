package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

const (
	// Two streams by urgency. Rescans land on the urgent stream: an undo
	// just restored documents and the pair view is stale until the rescan
	// runs. Container ingests are bulk work.
	urgentStream = "concatly:tasks:urgent"
	bulkStream   = "concatly:tasks:bulk"

	workerGroup  = "concatly:workers"
	scheduledSet = "concatly:scheduled"

	taskKeyPrefix   = "concatly:task:"
	tenantKeyPrefix = "concatly:tenant:"

	// recordTTL bounds how long finished task records stay queryable.
	recordTTL = 24 * time.Hour

	// abandonedAfter is the idle time before another consumer may claim a
	// dequeued-but-never-acked task.
	abandonedAfter = 5 * time.Minute
)

// Queue implements TaskQueue on Redis Streams. Each stream has one consumer
// group shared by all workers; the scheduled set holds delayed and retrying
// tasks until they come due.
type Queue struct {
	client   *redis.Client
	consumer string
}

// NewQueue creates a Redis-backed task queue. The consumer name must be
// unique per worker instance so abandoned-task claims attribute correctly.
func NewQueue(client *redis.Client, consumer string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumer == "" {
		consumer = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}

	q := &Queue{client: client, consumer: consumer}

	ctx := context.Background()
	for _, stream := range []string{urgentStream, bulkStream} {
		err := client.XGroupCreateMkStream(ctx, stream, workerGroup, "0").Err()
		if err != nil && !isGroupExistsError(err) {
			return nil, fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
		}
	}
	return q, nil
}

// streamFor routes a task by its priority.
func streamFor(task *domain.Task) string {
	if task.Priority > 0 {
		return urgentStream
	}
	return bulkStream
}

func taskKey(taskID string) string { return taskKeyPrefix + taskID }

func msgKey(taskID string) string { return taskKey(taskID) + ":msg" }

func tenantKey(tenantID string) string { return tenantKeyPrefix + tenantID + ":tasks" }

// stageTask writes the task record, indexes it for its tenant, and either
// parks it in the scheduled set or publishes it to its stream.
func (q *Queue) stageTask(ctx context.Context, pipe redis.Pipeliner, task *domain.Task, now time.Time) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	pipe.Set(ctx, taskKey(task.ID), data, recordTTL)
	pipe.SAdd(ctx, tenantKey(task.TenantID), task.ID)
	pipe.Expire(ctx, tenantKey(task.TenantID), recordTTL)

	if task.ScheduledFor.After(now) {
		pipe.ZAdd(ctx, scheduledSet, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
		return nil
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: streamFor(task),
		Values: map[string]interface{}{"task_id": task.ID},
	})
	return nil
}

// Enqueue publishes a task for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	pipe := q.client.Pipeline()
	if err := q.stageTask(ctx, pipe, task, time.Now()); err != nil {
		return err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// EnqueueBatch publishes several tasks in one round trip.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	pipe := q.client.Pipeline()
	now := time.Now()
	for _, task := range tasks {
		if task == nil {
			continue
		}
		if err := q.stageTask(ctx, pipe, task, now); err != nil {
			return err
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue batch: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or the context ends.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout returns the next task, preferring the urgent stream,
// waiting up to timeout seconds. Returns nil, nil when nothing surfaced.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// Due scheduled tasks move to their streams first; failures here only
	// delay them until the next dequeue.
	_ = q.promoteDue(ctx)

	if task, err := q.claimAbandoned(ctx); err == nil && task != nil {
		return task, nil
	}

	// Urgent work drains first, without blocking, so a loaded bulk stream
	// cannot starve rescans.
	if task, err := q.read(ctx, []string{urgentStream}, -1); err != nil || task != nil {
		return task, err
	}
	if task, err := q.read(ctx, []string{bulkStream}, -1); err != nil || task != nil {
		return task, err
	}

	// Nothing waiting: block across both streams.
	return q.read(ctx, []string{urgentStream, bulkStream}, time.Duration(timeout)*time.Second)
}

// read consumes at most one task from the given streams. A blocking read
// over two streams can deliver an entry from each; the surplus goes back to
// its stream.
func (q *Queue) read(ctx context.Context, streamNames []string, block time.Duration) (*domain.Task, error) {
	args := make([]string, 0, len(streamNames)*2)
	args = append(args, streamNames...)
	for range streamNames {
		args = append(args, ">")
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    workerGroup,
		Consumer: q.consumer,
		Streams:  args,
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task streams: %w", err)
	}

	var picked *domain.Task
	for _, s := range streams {
		for _, msg := range s.Messages {
			if picked != nil {
				q.requeueMessage(ctx, s.Stream, msg)
				continue
			}
			task, err := q.takeMessage(ctx, s.Stream, msg)
			if err != nil {
				return nil, err
			}
			picked = task
		}
	}
	return picked, nil
}

// requeueMessage puts an over-delivered message back on its stream.
func (q *Queue) requeueMessage(ctx context.Context, stream string, msg redis.XMessage) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, stream, workerGroup, msg.ID)
	pipe.XDel(ctx, stream, msg.ID)
	pipe.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: msg.Values})
	_, _ = pipe.Exec(ctx)
}

// takeMessage materializes a stream message into a processing task. Messages
// whose record is gone are acked away.
func (q *Queue) takeMessage(ctx context.Context, stream string, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.client.XAck(ctx, stream, workerGroup, msg.ID)
		q.client.XDel(ctx, stream, msg.ID)
		return nil, nil
	}
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task record: %w", err)
	}
	if task == nil {
		q.client.XAck(ctx, stream, workerGroup, msg.ID)
		q.client.XDel(ctx, stream, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	data, _ := json.Marshal(task)
	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKey(task.ID), data, recordTTL)
	// The stream and message id travel together so Ack/Nack can settle the
	// right stream entry.
	pipe.Set(ctx, msgKey(task.ID), stream+" "+msg.ID, recordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}
	return task, nil
}

// settleMessage acknowledges and deletes the stream entry a task was
// dequeued from, if any.
func (q *Queue) settleMessage(ctx context.Context, pipe redis.Pipeliner, taskID string) error {
	ref, err := q.client.Get(ctx, msgKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to load message ref: %w", err)
	}
	stream, msgID, ok := strings.Cut(ref, " ")
	if !ok {
		return nil
	}
	pipe.XAck(ctx, stream, workerGroup, msgID)
	pipe.XDel(ctx, stream, msgID)
	pipe.Del(ctx, msgKey(taskID))
	return nil
}

// Ack marks a task completed and settles its stream entry.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	pipe := q.client.Pipeline()
	if err := q.settleMessage(ctx, pipe, taskID); err != nil {
		return err
	}
	if task, err := q.GetTask(ctx, taskID); err == nil && task != nil {
		task.MarkCompleted()
		data, _ := json.Marshal(task)
		pipe.Set(ctx, taskKey(taskID), data, recordTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack settles the stream entry and either schedules a retry after the
// task's backoff or marks it failed when its attempts are spent.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task record: %w", err)
	}
	if task == nil {
		return errors.New("task not found")
	}

	pipe := q.client.Pipeline()
	if err := q.settleMessage(ctx, pipe, taskID); err != nil {
		return err
	}

	if task.CanRetry() {
		task.Retry(reason)
		pipe.ZAdd(ctx, scheduledSet, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		task.MarkFailed(reason)
	}
	data, _ := json.Marshal(task)
	pipe.Set(ctx, taskKey(taskID), data, recordTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}
	return nil
}

// GetTask loads a task record by id. Returns nil, nil when the record is
// gone or never existed.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load task record: %w", err)
	}
	var task domain.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task record: %w", err)
	}
	return &task, nil
}

// ListTasks returns a tenant's tasks, newest first, via the tenant index.
func (q *Queue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	if filter.TenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	ids, err := q.client.SMembers(ctx, tenantKey(filter.TenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant task index: %w", err)
	}

	var tasks []*domain.Task
	for _, id := range ids {
		task, err := q.GetTask(ctx, id)
		if err != nil || task == nil {
			// Expired records linger in the index until it expires too.
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(tasks) {
			return []*domain.Task{}, nil
		}
		tasks = tasks[filter.Offset:]
	}
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases queue resources. The client is shared and stays open.
func (q *Queue) Close() error { return nil }

// promoteDue publishes scheduled tasks whose time has come.
func (q *Queue) promoteDue(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	pipe := q.client.Pipeline()
	for _, taskID := range due {
		task, err := q.GetTask(ctx, taskID)
		if err == nil && task != nil {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: streamFor(task),
				Values: map[string]interface{}{"task_id": task.ID},
			})
		}
		pipe.ZRem(ctx, scheduledSet, taskID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandoned steals a task another worker dequeued and then went silent
// on, checking the urgent stream first.
func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Task, error) {
	for _, stream := range []string{urgentStream, bulkStream} {
		pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  workerGroup,
			Start:  "-",
			End:    "+",
			Count:  10,
			Idle:   abandonedAfter,
		}).Result()
		if err != nil {
			return nil, err
		}
		for _, p := range pending {
			claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   stream,
				Group:    workerGroup,
				Consumer: q.consumer,
				MinIdle:  abandonedAfter,
				Messages: []string{p.ID},
			}).Result()
			if err != nil || len(claimed) == 0 {
				continue
			}
			task, err := q.takeMessage(ctx, stream, claimed[0])
			if err != nil {
				return nil, err
			}
			if task != nil {
				return task, nil
			}
		}
	}
	return nil, nil
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
