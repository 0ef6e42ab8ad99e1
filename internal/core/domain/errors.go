package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown or unsupported AI provider
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrEmbeddingUnavailable indicates the embedding capability could not
	// be reached or is not configured
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrMergeDraftFailed indicates the merge-authoring capability failed
	ErrMergeDraftFailed = errors.New("merge draft failed")

	// ErrRepositoryUnavailable indicates the content repository could not
	// be reached with the configured credentials
	ErrRepositoryUnavailable = errors.New("content repository unavailable")

	// ErrPairNotActionable indicates the pair is already merged or ignored
	ErrPairNotActionable = errors.New("pair is not actionable")

	// ErrPairAlreadyMerged indicates an active merge operation already
	// exists for the unordered document pair
	ErrPairAlreadyMerged = errors.New("active merge operation already exists for pair")

	// ErrDocumentConsumed indicates the document was deleted by a prior
	// merge that has not been undone
	ErrDocumentConsumed = errors.New("document was consumed by an earlier merge")

	// ErrOperationNotUndoable indicates the operation is not in the
	// completed state
	ErrOperationNotUndoable = errors.New("operation is not in a completed state")

	// ErrLedgerLocked indicates the tenant's ledger lock could not be
	// acquired within the wait budget
	ErrLedgerLocked = errors.New("tenant ledger is locked by another operation")
)

// TenantIsolationError is fatal: a code path attempted to read or write data
// belonging to another tenant. It is never recoverable and never retried.
type TenantIsolationError struct {
	RequestedTenant string
	ActualTenant    string
	Resource        string
}

func (e *TenantIsolationError) Error() string {
	return fmt.Sprintf("tenant isolation violation: tenant %s touched %s owned by tenant %s",
		e.RequestedTenant, e.Resource, e.ActualTenant)
}

// MutationSide identifies which repository mutation failed during a merge.
type MutationSide string

const (
	MutationSideKeptUpdate MutationSide = "kept_update"
	MutationSideDelete     MutationSide = "delete"
	MutationSideRestore    MutationSide = "restore"
)

// RepositoryMutationError wraps a failed content-repository write, recording
// which side of the merge it belonged to.
type RepositoryMutationError struct {
	Side  MutationSide
	DocID string
	Err   error
}

func (e *RepositoryMutationError) Error() string {
	return fmt.Sprintf("repository mutation failed (%s, doc %s): %v", e.Side, e.DocID, e.Err)
}

func (e *RepositoryMutationError) Unwrap() error { return e.Err }

// PartialMergeError reports the non-atomic failure mode of a merge: the kept
// document was updated but the duplicate could not be deleted. No ledger entry
// exists; the leftover is reported for operator reconciliation, never rolled
// back automatically.
type PartialMergeError struct {
	KeptDocID    string
	DeletedDocID string
	Err          error
}

func (e *PartialMergeError) Error() string {
	return fmt.Sprintf("partial merge: updated kept doc %s but failed to delete %s: %v",
		e.KeptDocID, e.DeletedDocID, e.Err)
}

func (e *PartialMergeError) Unwrap() error { return e.Err }

// SequentialUndoError rejects an undo because newer completed operations in
// the same lineage exist. It always names the exact next operation to undo so
// callers can present a guided unwind, plus the full blocking set for
// diagnostics.
type SequentialUndoError struct {
	OperationID      string
	NextRequiredUndo *MergeOperation
	Blocking         []*MergeOperation
}

func (e *SequentialUndoError) Error() string {
	return fmt.Sprintf("operation %s cannot be undone yet: undo operation %s (%s) first (%d blocking)",
		e.OperationID, e.NextRequiredUndo.ID,
		e.NextRequiredUndo.Timestamp.Format(time.RFC3339), len(e.Blocking))
}

// StaleSnapshotWarning flags that a kept document was edited after the merge
// and the undo restored the snapshot over that later edit. Non-fatal: undo is
// user-initiated and explicit, so the fact is recorded rather than refused.
type StaleSnapshotWarning struct {
	DocID        string
	ExpectedHash string
	ActualHash   string
}

func (w *StaleSnapshotWarning) Error() string {
	return fmt.Sprintf("restored over edit: doc %s changed since the merge was applied", w.DocID)
}
