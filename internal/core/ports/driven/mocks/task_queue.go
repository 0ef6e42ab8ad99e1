package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// MockTaskQueue is an in-memory TaskQueue for testing
type MockTaskQueue struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	pending []string // FIFO of pending task IDs
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{tasks: make(map[string]*domain.Task)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	cp.Status = domain.TaskStatusPending
	m.tasks[task.ID] = &cp
	m.pending = append(m.pending, task.ID)
	return nil
}

func (m *MockTaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil, nil
	}
	id := m.pending[0]
	m.pending = m.pending[1:]
	task := m.tasks[id]
	now := time.Now()
	task.Status = domain.TaskStatusProcessing
	task.Attempts++
	task.StartedAt = &now
	task.UpdatedAt = now
	cp := *task
	return &cp, nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	return m.Dequeue(ctx)
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	task.Status = domain.TaskStatusCompleted
	task.CompletedAt = &now
	task.UpdatedAt = now
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.Error = reason
	task.UpdatedAt = time.Now()
	if task.CanRetry() {
		task.Status = domain.TaskStatusPending
		m.pending = append(m.pending, taskID)
	} else {
		task.Status = domain.TaskStatusFailed
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (m *MockTaskQueue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Task
	for _, task := range m.tasks {
		if filter.TenantID != "" && task.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error { return nil }

func (m *MockTaskQueue) Close() error { return nil }
