package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// Worker processes tasks from the task queue.
// It runs container ingestion and post-undo rescans in the background.
type Worker struct {
	taskQueue      driven.TaskQueue
	ingestService  driving.IngestService
	pairingService driving.PairingService
	logger         *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	IngestService  driving.IngestService
	PairingService driving.PairingService
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		ingestService:  cfg.IngestService,
		pairingService: cfg.PairingService,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a task with timeout
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		// Process the task
		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "tenant_id", task.TenantID)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIngestContainer:
		err = w.handleIngestContainer(ctx, task)
	case domain.TaskTypeRescanDocuments:
		err = w.handleRescanDocuments(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		// Nack the task so it can be retried
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	// Ack the task
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleIngestContainer handles an ingest_container task.
func (w *Worker) handleIngestContainer(ctx context.Context, task *domain.Task) error {
	containerID := task.Payload["container_id"]
	if containerID == "" {
		return fmt.Errorf("container_id not found in task payload")
	}

	limit := 0
	if raw := task.Payload["limit"]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid limit in task payload: %q", raw)
		}
		limit = parsed
	}

	result, err := w.ingestService.IngestContainer(ctx, task.TenantID, containerID, limit)
	if err != nil {
		return err
	}

	if result.Errors > 0 {
		w.logger.Warn("ingest completed with errors",
			"tenant_id", task.TenantID,
			"container_id", containerID,
			"added", result.DocumentsAdded,
			"errors", result.Errors,
		)
		// Partial ingest still counts; failed pages are logged and can be
		// retried with another ingest.
	}

	return nil
}

// handleRescanDocuments handles a rescan_documents task. Restored documents
// are re-embedded first so the scoped scan sees current index state.
func (w *Worker) handleRescanDocuments(ctx context.Context, task *domain.Task) error {
	raw := task.Payload["doc_ids"]
	if raw == "" {
		return fmt.Errorf("doc_ids not found in task payload")
	}

	var docIDs []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			docIDs = append(docIDs, id)
		}
	}
	if len(docIDs) == 0 {
		return fmt.Errorf("doc_ids payload is empty")
	}

	if _, err := w.ingestService.ReindexDocuments(ctx, task.TenantID, docIDs); err != nil {
		return fmt.Errorf("reindex documents: %w", err)
	}

	if _, err := w.pairingService.Scan(ctx, task.TenantID, driving.PairingOptions{DocIDs: docIDs}); err != nil {
		return fmt.Errorf("rescan pairs: %w", err)
	}

	return nil
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
