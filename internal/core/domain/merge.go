package domain

import (
	"sort"
	"time"
)

// MergeStatus is the ledger state of a recorded merge operation.
type MergeStatus string

const (
	MergeStatusCompleted MergeStatus = "completed"
	MergeStatusUndone    MergeStatus = "undone"
)

// MergeState tracks a merge request through the orchestrator's state machine.
type MergeState string

const (
	MergeStateRequested      MergeState = "requested"
	MergeStateContentDrafted MergeState = "content_drafted"
	MergeStateApplied        MergeState = "applied"
	MergeStateIndexed        MergeState = "indexed"
	MergeStateRecorded       MergeState = "recorded"
	MergeStateFailed         MergeState = "failed"
)

// MergeOperation is the ledger's unit of record: one consolidation of two
// documents into one, with enough snapshot data to reverse it. Immutable once
// appended except for the Status/UndoneAt transition.
type MergeOperation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`

	KeptDocID    string `json:"kept_doc_id"`
	DeletedDocID string `json:"deleted_doc_id"`
	KeptTitle    string `json:"kept_title"`
	DeletedTitle string `json:"deleted_title"`

	KeptPreMergeSnapshot *DocumentSnapshot `json:"kept_pre_merge_snapshot"`
	DeletedDocSnapshot   *DocumentSnapshot `json:"deleted_doc_snapshot"`
	AppliedMergedContent string            `json:"applied_merged_content"`

	// TrashToken is the repository's handle for restoring the deleted page.
	TrashToken string `json:"trash_token,omitempty"`

	Status   MergeStatus `json:"status"`
	UndoneAt *time.Time  `json:"undone_at,omitempty"`

	// RestoredAsNewID is set during undo when the repository could not
	// preserve the deleted page's identity and recreated it under a new id.
	// The new id starts a fresh lineage link; chains are never spliced
	// through it implicitly.
	RestoredAsNewID string `json:"restored_as_new_id,omitempty"`
}

// Active reports whether the operation is completed and not undone.
func (op *MergeOperation) Active() bool {
	return op.Status == MergeStatusCompleted
}

// Touches reports whether the operation involves the given document identity
// on either side.
func (op *MergeOperation) Touches(docID string) bool {
	return op.KeptDocID == docID || op.DeletedDocID == docID
}

// PairKey returns the canonical key for the operation's unordered pair.
func (op *MergeOperation) PairKey() string {
	return PairKey(op.KeptDocID, op.DeletedDocID)
}

// ComputeLineage returns the merge lineage of docID within ops: every
// operation transitively reachable through the "touches" relation, following
// kept-side chains forward and deleted-side chains back to their own origins.
// The result is ordered by timestamp ascending (ties broken by id).
//
// ops must all belong to one tenant; lineage is never computed across tenants.
func ComputeLineage(ops []*MergeOperation, docID string) []*MergeOperation {
	// Adjacency from document identity to the operations touching it.
	byDoc := make(map[string][]*MergeOperation)
	for _, op := range ops {
		byDoc[op.KeptDocID] = append(byDoc[op.KeptDocID], op)
		byDoc[op.DeletedDocID] = append(byDoc[op.DeletedDocID], op)
	}

	seenDocs := map[string]bool{docID: true}
	seenOps := make(map[string]bool)
	queue := []string{docID}
	var lineage []*MergeOperation

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		for _, op := range byDoc[d] {
			if seenOps[op.ID] {
				continue
			}
			seenOps[op.ID] = true
			lineage = append(lineage, op)
			for _, next := range []string{op.KeptDocID, op.DeletedDocID} {
				if !seenDocs[next] {
					seenDocs[next] = true
					queue = append(queue, next)
				}
			}
		}
	}

	sort.Slice(lineage, func(i, j int) bool {
		if lineage[i].Timestamp.Equal(lineage[j].Timestamp) {
			return lineage[i].ID < lineage[j].ID
		}
		return lineage[i].Timestamp.Before(lineage[j].Timestamp)
	})
	return lineage
}

// BlockingUndos returns the completed operations in lineage that are newer
// than target and therefore must be undone first, ordered oldest to newest.
func BlockingUndos(lineage []*MergeOperation, target *MergeOperation) []*MergeOperation {
	var blocking []*MergeOperation
	for _, op := range lineage {
		if op.ID == target.ID || !op.Active() {
			continue
		}
		if op.Timestamp.After(target.Timestamp) {
			blocking = append(blocking, op)
		}
	}
	return blocking
}

// MergeResult is returned to callers on a successful merge.
type MergeResult struct {
	OperationID  string     `json:"operation_id"`
	State        MergeState `json:"state"`
	KeptDocID    string     `json:"kept_doc_id"`
	DeletedDocID string     `json:"deleted_doc_id"`
}

// InconsistencyReport flags a mismatch between the content repository and the
// ledger, typically a crash between apply and record. Guessing intent here is
// unsafe, so reports are surfaced for operator reconciliation only.
type InconsistencyReport struct {
	TenantID    string `json:"tenant_id"`
	DocID       string `json:"doc_id"`
	Description string `json:"description"`
}

// UndoResult is returned to callers on a successful undo.
type UndoResult struct {
	OperationID     string   `json:"operation_id"`
	RestoredKeptID  string   `json:"restored_kept_id"`
	RestoredDelID   string   `json:"restored_deleted_id"`
	RestoredAsNewID string   `json:"restored_as_new_id,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}
