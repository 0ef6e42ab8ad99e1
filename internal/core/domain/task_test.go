package domain

import (
	"testing"
	"time"
)

func TestNewTask_PerTypeDefaults(t *testing.T) {
	tests := []struct {
		name        string
		taskType    TaskType
		priority    int
		maxAttempts int
	}{
		{"rescan is urgent", TaskTypeRescanDocuments, 10, 5},
		{"ingest is bulk", TaskTypeIngestContainer, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask(tt.taskType, "tenant-1", nil)

			if task.Priority != tt.priority {
				t.Errorf("Priority = %d, want %d", task.Priority, tt.priority)
			}
			if task.MaxAttempts != tt.maxAttempts {
				t.Errorf("MaxAttempts = %d, want %d", task.MaxAttempts, tt.maxAttempts)
			}
			if task.Status != TaskStatusPending {
				t.Errorf("Status = %s, want %s", task.Status, TaskStatusPending)
			}
			if task.ScheduledFor.After(time.Now()) {
				t.Error("new task should be due immediately")
			}
		})
	}
}

func TestTask_RetryBackoffByType(t *testing.T) {
	tests := []struct {
		name     string
		taskType TaskType
		attempts int
		want     time.Duration
	}{
		{"rescan first retry", TaskTypeRescanDocuments, 1, 10 * time.Second},
		{"rescan third retry", TaskTypeRescanDocuments, 3, 30 * time.Second},
		{"ingest first retry", TaskTypeIngestContainer, 1, 30 * time.Second},
		{"ingest third retry", TaskTypeIngestContainer, 3, 270 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask(tt.taskType, "tenant-1", nil)
			task.Attempts = tt.attempts

			before := time.Now()
			task.Retry("transient failure")

			if task.Status != TaskStatusPending {
				t.Errorf("Status = %s, want %s", task.Status, TaskStatusPending)
			}
			delay := task.ScheduledFor.Sub(before)
			if delay < tt.want || delay > tt.want+time.Second {
				t.Errorf("backoff = %v, want ~%v", delay, tt.want)
			}
			if task.StartedAt != nil {
				t.Error("retry should clear StartedAt")
			}
		})
	}
}

func TestTask_RetryBudget(t *testing.T) {
	task := NewTask(TaskTypeIngestContainer, "tenant-1", nil)

	for i := 0; i < task.MaxAttempts; i++ {
		if !task.CanRetry() {
			t.Fatalf("attempt %d should be allowed with budget %d", i+1, task.MaxAttempts)
		}
		task.MarkProcessing()
	}
	if task.CanRetry() {
		t.Errorf("budget of %d attempts exhausted, CanRetry should be false", task.MaxAttempts)
	}

	task.MarkFailed("gave up")
	if task.Status != TaskStatusFailed {
		t.Errorf("Status = %s, want %s", task.Status, TaskStatusFailed)
	}
	if task.CompletedAt == nil {
		t.Error("failed task should record CompletedAt")
	}
}
