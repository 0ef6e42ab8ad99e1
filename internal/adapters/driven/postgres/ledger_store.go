package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MergeLedger = (*MergeLedgerStore)(nil)

// MergeLedgerStore implements driven.MergeLedger using PostgreSQL.
// Rows are append-mostly: the only update ever issued is the
// completed -> undone transition, and nothing is deleted.
type MergeLedgerStore struct {
	db *DB
}

// NewMergeLedgerStore creates a new MergeLedgerStore
func NewMergeLedgerStore(db *DB) *MergeLedgerStore {
	return &MergeLedgerStore{db: db}
}

const mergeOperationColumns = `
	id, tenant_id, ts, kept_doc_id, deleted_doc_id, kept_title, deleted_title,
	kept_pre_merge_snapshot, deleted_doc_snapshot, applied_merged_content,
	trash_token, status, undone_at, restored_as_new_id
`

// Append records a completed merge operation. The pair and consumed-document
// invariants are enforced twice: by explicit checks inside the transaction
// (for precise errors) and by the partial unique indexes (for races).
func (s *MergeLedgerStore) Append(ctx context.Context, op *domain.MergeOperation) error {
	if op.TenantID == "" {
		return domain.ErrInvalidInput
	}

	keptSnap, err := json.Marshal(op.KeptPreMergeSnapshot)
	if err != nil {
		return fmt.Errorf("marshal kept snapshot: %w", err)
	}
	deletedSnap, err := json.Marshal(op.DeletedDocSnapshot)
	if err != nil {
		return fmt.Errorf("marshal deleted snapshot: %w", err)
	}

	a, b := domain.CanonicalPair(op.KeptDocID, op.DeletedDocID)

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM merge_operations
				WHERE tenant_id = $1 AND status = 'completed'
				  AND least(kept_doc_id, deleted_doc_id) = $2
				  AND greatest(kept_doc_id, deleted_doc_id) = $3
			)`, op.TenantID, a, b).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrPairAlreadyMerged
		}

		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM merge_operations
				WHERE tenant_id = $1 AND status = 'completed'
				  AND deleted_doc_id IN ($2, $3)
			)`, op.TenantID, op.KeptDocID, op.DeletedDocID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDocumentConsumed
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO merge_operations (`+mergeOperationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			op.ID,
			op.TenantID,
			op.Timestamp,
			op.KeptDocID,
			op.DeletedDocID,
			op.KeptTitle,
			op.DeletedTitle,
			keptSnap,
			deletedSnap,
			op.AppliedMergedContent,
			op.TrashToken,
			op.Status,
			NullTime(op.UndoneAt),
			op.RestoredAsNewID,
		)
		return err
	})
}

// Get retrieves one operation. A row owned by another tenant produces a
// TenantIsolationError, never the other tenant's data.
func (s *MergeLedgerStore) Get(ctx context.Context, tenantID, opID string) (*domain.MergeOperation, error) {
	// Look up by id across tenants so cross-tenant access is distinguishable
	// from absence.
	row := s.db.QueryRowContext(ctx,
		"SELECT "+mergeOperationColumns+" FROM merge_operations WHERE id = $1", opID)
	op, err := scanMergeOperation(row)
	if err != nil {
		return nil, err
	}
	if op.TenantID != tenantID {
		return nil, &domain.TenantIsolationError{
			RequestedTenant: tenantID,
			ActualTenant:    op.TenantID,
			Resource:        "merge operation " + opID,
		}
	}
	return op, nil
}

// ListForTenant returns the tenant's operations in chronological order
func (s *MergeLedgerStore) ListForTenant(ctx context.Context, tenantID string) ([]*domain.MergeOperation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+mergeOperationColumns+" FROM merge_operations WHERE tenant_id = $1 ORDER BY ts, id", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*domain.MergeOperation
	for rows.Next() {
		op, err := scanMergeOperationRows(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// LineageFor computes the transitive merge chain for a document. The touches
// relation is walked in memory over the tenant's operations; tenants' ledgers
// are small enough that this beats a recursive CTE in clarity and matches the
// in-memory implementation exactly.
func (s *MergeLedgerStore) LineageFor(ctx context.Context, tenantID, docID string) ([]*domain.MergeOperation, error) {
	ops, err := s.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return domain.ComputeLineage(ops, docID), nil
}

// ActiveForPair returns the active operation for the unordered pair
func (s *MergeLedgerStore) ActiveForPair(ctx context.Context, tenantID, docA, docB string) (*domain.MergeOperation, error) {
	a, b := domain.CanonicalPair(docA, docB)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mergeOperationColumns+`
		FROM merge_operations
		WHERE tenant_id = $1 AND status = 'completed'
		  AND least(kept_doc_id, deleted_doc_id) = $2
		  AND greatest(kept_doc_id, deleted_doc_id) = $3`,
		tenantID, a, b)
	return scanMergeOperation(row)
}

// MarkUndone transitions completed -> undone
func (s *MergeLedgerStore) MarkUndone(ctx context.Context, tenantID, opID, restoredAsNewID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE merge_operations
		SET status = 'undone', undone_at = $3, restored_as_new_id = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'completed'`,
		tenantID, opID, time.Now().UTC(), restoredAsNewID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either absent or not in a completed state; distinguish.
		var status string
		err := s.db.QueryRowContext(ctx,
			"SELECT status FROM merge_operations WHERE tenant_id = $1 AND id = $2",
			tenantID, opID).Scan(&status)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrOperationNotUndoable
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMergeOperation(row *sql.Row) (*domain.MergeOperation, error) {
	op, err := scanMergeOperationRows(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return op, err
}

func scanMergeOperationRows(row rowScanner) (*domain.MergeOperation, error) {
	var op domain.MergeOperation
	var keptSnap, deletedSnap []byte
	var undoneAt sql.NullTime

	err := row.Scan(
		&op.ID,
		&op.TenantID,
		&op.Timestamp,
		&op.KeptDocID,
		&op.DeletedDocID,
		&op.KeptTitle,
		&op.DeletedTitle,
		&keptSnap,
		&deletedSnap,
		&op.AppliedMergedContent,
		&op.TrashToken,
		&op.Status,
		&undoneAt,
		&op.RestoredAsNewID,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keptSnap, &op.KeptPreMergeSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal kept snapshot: %w", err)
	}
	if err := json.Unmarshal(deletedSnap, &op.DeletedDocSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal deleted snapshot: %w", err)
	}
	op.UndoneAt = TimePtr(undoneAt)
	return &op, nil
}
