package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
	"github.com/custodia-labs/concatly-core/internal/runtime"
)

// mergeLockTTL bounds how long a crashed instance can hold a tenant's merge
// lock before it expires.
const mergeLockTTL = 2 * time.Minute

// Ensure MergeOrchestrator implements MergeService
var _ driving.MergeService = (*MergeOrchestrator)(nil)

// MergeOrchestrator drives a merge through its state machine:
//
//	requested -> content_drafted -> applied -> indexed -> recorded
//
// The content repository has no transactions, so the orchestrator sequences
// its two mutations update-then-delete: a failure after the update leaves
// both documents present (the kept one already merged), which is the only
// recoverable partial state. Mutating steps run under a per-tenant lock so
// concurrent merges never race on the same documents.
type MergeOrchestrator struct {
	pairStore     driven.PairStore
	documentStore driven.DocumentStore
	vectorIndex   driven.VectorIndex
	ledger        driven.MergeLedger
	credStore     driven.CredentialStore
	repoFactory   driven.RepositoryFactory
	lock          driven.DistributedLock
	services      *runtime.Services
	logger        *slog.Logger
}

// MergeOrchestratorConfig holds dependencies for MergeOrchestrator.
type MergeOrchestratorConfig struct {
	PairStore     driven.PairStore
	DocumentStore driven.DocumentStore
	VectorIndex   driven.VectorIndex
	Ledger        driven.MergeLedger
	CredStore     driven.CredentialStore
	RepoFactory   driven.RepositoryFactory
	Lock          driven.DistributedLock
	Services      *runtime.Services
	Logger        *slog.Logger
}

// NewMergeOrchestrator creates a new merge orchestrator.
func NewMergeOrchestrator(cfg MergeOrchestratorConfig) *MergeOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MergeOrchestrator{
		pairStore:     cfg.PairStore,
		documentStore: cfg.DocumentStore,
		vectorIndex:   cfg.VectorIndex,
		ledger:        cfg.Ledger,
		credStore:     cfg.CredStore,
		repoFactory:   cfg.RepoFactory,
		lock:          cfg.Lock,
		services:      cfg.Services,
		logger:        logger,
	}
}

// repositoryForTenant resolves a tenant's content-repository client from its
// stored credentials. Shared by every service that touches the repository.
func repositoryForTenant(ctx context.Context, credStore driven.CredentialStore, factory driven.RepositoryFactory, tenantID string) (driven.ContentRepository, error) {
	creds, err := credStore.GetCredentials(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository credentials: %w", err)
	}
	if !creds.IsConfigured() {
		return nil, fmt.Errorf("%w: repository credentials incomplete", domain.ErrInvalidInput)
	}
	return factory.ForTenant(ctx, creds)
}

// tenantMergeLock is the lock name serializing a tenant's ledger mutations.
func tenantMergeLock(tenantID string) string {
	return "merge:" + tenantID
}

// Preview drafts merged content for a pair without touching the repository
func (o *MergeOrchestrator) Preview(ctx context.Context, tenantID, pairID string) (*driving.MergePreview, error) {
	pair, err := o.pairStore.Get(ctx, tenantID, pairID)
	if err != nil {
		return nil, err
	}
	if pair.Status != domain.PairStatusPending {
		return nil, domain.ErrPairNotActionable
	}

	drafter := o.services.MergeDrafter()
	if drafter == nil {
		return nil, domain.ErrMergeDraftFailed
	}

	repo, err := repositoryForTenant(ctx, o.credStore, o.repoFactory, tenantID)
	if err != nil {
		return nil, err
	}

	snapA, err := repo.GetDocument(ctx, pair.DocAID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch doc %s: %w", pair.DocAID, err)
	}
	snapB, err := repo.GetDocument(ctx, pair.DocBID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch doc %s: %w", pair.DocBID, err)
	}

	content, err := drafter.DraftMerge(ctx, snapA, snapB)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMergeDraftFailed, err)
	}

	return &driving.MergePreview{
		PairID:        pair.ID,
		Similarity:    pair.Similarity,
		MergedContent: content,
	}, nil
}

// Merge drives the full consolidation of a pair into its kept document.
func (o *MergeOrchestrator) Merge(ctx context.Context, tenantID, pairID string, keep driving.KeepSide) (*domain.MergeResult, error) {
	// State: requested
	pair, err := o.pairStore.Get(ctx, tenantID, pairID)
	if err != nil {
		return nil, err
	}
	if pair.Status != domain.PairStatusPending {
		return nil, domain.ErrPairNotActionable
	}

	var keptID, deletedID string
	switch keep {
	case driving.KeepSideA:
		keptID, deletedID = pair.DocAID, pair.DocBID
	case driving.KeepSideB:
		keptID, deletedID = pair.DocBID, pair.DocAID
	default:
		return nil, fmt.Errorf("%w: keep side must be %q or %q", domain.ErrInvalidInput, driving.KeepSideA, driving.KeepSideB)
	}

	drafter := o.services.MergeDrafter()
	if drafter == nil {
		return nil, domain.ErrMergeDraftFailed
	}

	repo, err := repositoryForTenant(ctx, o.credStore, o.repoFactory, tenantID)
	if err != nil {
		return nil, err
	}

	// Snapshot both sides before anything mutates. The snapshots are what
	// make the operation reversible.
	keptSnap, err := repo.GetDocument(ctx, keptID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot kept doc %s: %w", keptID, err)
	}
	deletedSnap, err := repo.GetDocument(ctx, deletedID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot doc %s: %w", deletedID, err)
	}
	keptSnap.TenantID = tenantID
	deletedSnap.TenantID = tenantID

	// State: content_drafted
	merged, err := drafter.DraftMerge(ctx, keptSnap, deletedSnap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMergeDraftFailed, err)
	}

	// Mutating steps run under the tenant lock.
	acquired, err := o.lock.Acquire(ctx, tenantMergeLock(tenantID), mergeLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrLedgerLocked
	}
	defer func() {
		_ = o.lock.Release(ctx, tenantMergeLock(tenantID))
	}()

	// Re-check ledger invariants inside the lock, before any repository
	// mutation: a concurrent merge may have consumed either document while
	// we were drafting.
	if _, err := o.ledger.ActiveForPair(ctx, tenantID, keptID, deletedID); err == nil {
		return nil, domain.ErrPairAlreadyMerged
	}
	ops, err := o.ledger.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	for _, prior := range ops {
		if prior.Active() && (prior.DeletedDocID == keptID || prior.DeletedDocID == deletedID) {
			return nil, domain.ErrDocumentConsumed
		}
	}

	// State: applied. Update first, delete second: failing the update leaves
	// the repository untouched, failing the delete leaves both documents
	// present and recoverable.
	if err := repo.UpdateDocument(ctx, keptID, keptSnap.Title, merged); err != nil {
		return nil, &domain.RepositoryMutationError{Side: domain.MutationSideKeptUpdate, DocID: keptID, Err: err}
	}
	trashToken, err := repo.DeleteDocument(ctx, deletedID)
	if err != nil {
		o.logger.Error("merge left partial state: kept doc updated, duplicate not deleted",
			"tenant_id", tenantID, "kept_doc_id", keptID, "deleted_doc_id", deletedID, "error", err)
		return nil, &domain.PartialMergeError{KeptDocID: keptID, DeletedDocID: deletedID, Err: err}
	}

	// State: indexed. The merged-away document must leave the index before
	// the operation is recorded, otherwise it keeps surfacing as a live
	// duplicate candidate. One retry, then the merge surfaces as partial
	// state with no ledger entry.
	if err := o.deleteFromIndex(ctx, tenantID, deletedID); err != nil {
		o.logger.Error("merge left partial state: duplicate trashed but still indexed",
			"tenant_id", tenantID, "kept_doc_id", keptID, "deleted_doc_id", deletedID, "error", err)
		return nil, &domain.PartialMergeError{KeptDocID: keptID, DeletedDocID: deletedID,
			Err: fmt.Errorf("failed to remove doc from index: %w", err)}
	}
	// The kept doc's re-embed and mirror upkeep are repairable by a rescan,
	// so failures there are logged rather than failing the merge.
	o.reindexAfterMerge(ctx, tenantID, keptID, deletedID, keptSnap, merged)

	// State: recorded. Last cancellation point: once the append starts the
	// operation must complete.
	if err := ctx.Err(); err != nil {
		o.logger.Error("merge applied but cancelled before recording",
			"tenant_id", tenantID, "kept_doc_id", keptID, "deleted_doc_id", deletedID)
		return nil, fmt.Errorf("merge applied but failed to record operation: %w", err)
	}
	op := &domain.MergeOperation{
		ID:                   domain.GenerateID(),
		TenantID:             tenantID,
		Timestamp:            time.Now().UTC(),
		KeptDocID:            keptID,
		DeletedDocID:         deletedID,
		KeptTitle:            keptSnap.Title,
		DeletedTitle:         deletedSnap.Title,
		KeptPreMergeSnapshot: keptSnap,
		DeletedDocSnapshot:   deletedSnap,
		AppliedMergedContent: merged,
		TrashToken:           trashToken,
		Status:               domain.MergeStatusCompleted,
	}
	if err := o.ledger.Append(ctx, op); err != nil {
		// The repository was already mutated. Surface loudly: the operation
		// is not reversible without a ledger entry and needs operator
		// reconciliation.
		o.logger.Error("merge applied but not recorded",
			"tenant_id", tenantID, "kept_doc_id", keptID, "deleted_doc_id", deletedID, "error", err)
		return nil, fmt.Errorf("merge applied but failed to record operation: %w", err)
	}

	if err := o.pairStore.SetStatus(ctx, tenantID, pairID, domain.PairStatusMerged); err != nil {
		o.logger.Warn("failed to mark pair merged", "tenant_id", tenantID, "pair_id", pairID, "error", err)
	}

	o.logger.Info("merge recorded",
		"tenant_id", tenantID, "operation_id", op.ID, "kept_doc_id", keptID, "deleted_doc_id", deletedID)

	return &domain.MergeResult{
		OperationID:  op.ID,
		State:        domain.MergeStateRecorded,
		KeptDocID:    keptID,
		DeletedDocID: deletedID,
	}, nil
}

// deleteFromIndex removes a document from the vector index, retrying once on
// a transient failure.
func (o *MergeOrchestrator) deleteFromIndex(ctx context.Context, tenantID, docID string) error {
	if err := o.vectorIndex.Delete(ctx, tenantID, docID); err != nil {
		o.logger.Warn("retrying index removal", "tenant_id", tenantID, "doc_id", docID, "error", err)
		return o.vectorIndex.Delete(ctx, tenantID, docID)
	}
	return nil
}

// reindexAfterMerge removes the deleted document from the mirror and
// refreshes the kept document with the merged content.
func (o *MergeOrchestrator) reindexAfterMerge(ctx context.Context, tenantID, keptID, deletedID string, keptSnap *domain.DocumentSnapshot, merged string) {
	if err := o.documentStore.Delete(ctx, tenantID, deletedID); err != nil {
		o.logger.Warn("failed to remove merged-away doc from mirror", "tenant_id", tenantID, "doc_id", deletedID, "error", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          keptID,
		TenantID:    tenantID,
		Title:       keptSnap.Title,
		ContentHash: domain.ContentHash(merged),
		URL:         keptSnap.URL,
		ContainerID: keptSnap.ContainerID,
		IndexedAt:   now,
		UpdatedAt:   now,
	}
	if emb := o.services.EmbeddingService(); emb != nil {
		vec, err := emb.EmbedDocument(ctx, merged)
		if err != nil {
			o.logger.Warn("failed to re-embed kept doc", "tenant_id", tenantID, "doc_id", keptID, "error", err)
		} else {
			doc.Embedding = vec
		}
	}
	if len(doc.Embedding) > 0 {
		if err := o.vectorIndex.Upsert(ctx, tenantID, doc); err != nil {
			o.logger.Warn("failed to reindex kept doc", "tenant_id", tenantID, "doc_id", keptID, "error", err)
		}
	}
	if err := o.documentStore.Save(ctx, doc); err != nil {
		o.logger.Warn("failed to refresh kept doc mirror", "tenant_id", tenantID, "doc_id", keptID, "error", err)
	}
}
