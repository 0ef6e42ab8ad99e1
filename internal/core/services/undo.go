package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// Ensure undoService implements UndoService
var _ driving.UndoService = (*undoService)(nil)

// undoService reverses recorded merges in strict lineage order: within a
// merge chain, only the most recent completed operation may be undone.
type undoService struct {
	ledger      driven.MergeLedger
	credStore   driven.CredentialStore
	repoFactory driven.RepositoryFactory
	lock        driven.DistributedLock
	taskQueue   driven.TaskQueue
	logger      *slog.Logger
}

// NewUndoService creates a new UndoService
func NewUndoService(
	ledger driven.MergeLedger,
	credStore driven.CredentialStore,
	repoFactory driven.RepositoryFactory,
	lock driven.DistributedLock,
	taskQueue driven.TaskQueue,
	logger *slog.Logger,
) driving.UndoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &undoService{
		ledger:      ledger,
		credStore:   credStore,
		repoFactory: repoFactory,
		lock:        lock,
		taskQueue:   taskQueue,
		logger:      logger,
	}
}

// Undo reverses a recorded merge operation.
func (s *undoService) Undo(ctx context.Context, tenantID, operationID string) (*domain.UndoResult, error) {
	repo, err := repositoryForTenant(ctx, s.credStore, s.repoFactory, tenantID)
	if err != nil {
		return nil, err
	}

	acquired, err := s.lock.Acquire(ctx, tenantMergeLock(tenantID), mergeLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrLedgerLocked
	}
	defer func() {
		_ = s.lock.Release(ctx, tenantMergeLock(tenantID))
	}()

	// The operation and its lineage are read under the tenant lock: a merge
	// holding the lock can stack a newer operation onto this lineage, which
	// would make an earlier read stale.
	op, err := s.ledger.Get(ctx, tenantID, operationID)
	if err != nil {
		return nil, err
	}
	if !op.Active() {
		return nil, domain.ErrOperationNotUndoable
	}

	// Newer completed operations in the same lineage must be unwound first:
	// they were built on top of this merge's result.
	lineage, err := s.ledger.LineageFor(ctx, tenantID, op.KeptDocID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lineage: %w", err)
	}
	if blocking := domain.BlockingUndos(lineage, op); len(blocking) > 0 {
		return nil, &domain.SequentialUndoError{
			OperationID:      op.ID,
			NextRequiredUndo: blocking[len(blocking)-1],
			Blocking:         blocking,
		}
	}

	var warnings []string

	// Detect edits made to the kept document after the merge. The restore
	// proceeds regardless; the overwrite is recorded, not refused.
	if current, err := repo.GetDocument(ctx, op.KeptDocID); err == nil {
		actual := domain.ContentHash(current.Content)
		expected := domain.ContentHash(op.AppliedMergedContent)
		if actual != expected {
			w := &domain.StaleSnapshotWarning{DocID: op.KeptDocID, ExpectedHash: expected, ActualHash: actual}
			s.logger.Warn("undo restoring over a later edit", "tenant_id", tenantID, "doc_id", op.KeptDocID)
			warnings = append(warnings, w.Error())
		}
	}

	// Restore the kept document to its pre-merge content.
	snap := op.KeptPreMergeSnapshot
	if snap == nil {
		return nil, fmt.Errorf("operation %s has no pre-merge snapshot", op.ID)
	}
	if err := repo.UpdateDocument(ctx, op.KeptDocID, snap.Title, snap.Content); err != nil {
		return nil, &domain.RepositoryMutationError{Side: domain.MutationSideKeptUpdate, DocID: op.KeptDocID, Err: err}
	}

	// Bring the deleted document back from the trash. The repository may
	// assign a new identity; if so, the new id starts a fresh lineage.
	// A domain.ErrNotFound here means the trash expired or was purged; the
	// snapshot stays intact in the ledger for manual recreation.
	restoredID, err := repo.RestoreDocument(ctx, op.TrashToken)
	if err != nil {
		s.logger.Error("undo left partial state: kept doc reverted, duplicate not restored",
			"tenant_id", tenantID, "operation_id", op.ID, "deleted_doc_id", op.DeletedDocID, "error", err)
		return nil, &domain.RepositoryMutationError{Side: domain.MutationSideRestore, DocID: op.DeletedDocID, Err: err}
	}

	restoredAsNewID := ""
	if restoredID != op.DeletedDocID {
		restoredAsNewID = restoredID
		warnings = append(warnings, fmt.Sprintf("doc %s was restored under new id %s", op.DeletedDocID, restoredID))
	}

	// Last cancellation point: once the mark starts the undo must complete.
	if err := ctx.Err(); err != nil {
		s.logger.Error("undo applied but cancelled before recording",
			"tenant_id", tenantID, "operation_id", op.ID)
		return nil, fmt.Errorf("undo applied but failed to record: %w", err)
	}
	if err := s.ledger.MarkUndone(ctx, tenantID, op.ID, restoredAsNewID); err != nil {
		s.logger.Error("undo applied but not recorded",
			"tenant_id", tenantID, "operation_id", op.ID, "error", err)
		return nil, fmt.Errorf("undo applied but failed to record: %w", err)
	}

	// Both documents changed; rescan them in the background so the pair
	// cache and index catch up.
	task := domain.NewTask(domain.TaskTypeRescanDocuments, tenantID, map[string]string{
		"doc_ids": strings.Join([]string{op.KeptDocID, restoredID}, ","),
	})
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		s.logger.Warn("failed to enqueue rescan after undo", "tenant_id", tenantID, "error", err)
	}

	s.logger.Info("undo recorded",
		"tenant_id", tenantID, "operation_id", op.ID, "restored_doc_id", restoredID)

	return &domain.UndoResult{
		OperationID:     op.ID,
		RestoredKeptID:  op.KeptDocID,
		RestoredDelID:   restoredID,
		RestoredAsNewID: restoredAsNewID,
		Warnings:        warnings,
	}, nil
}
