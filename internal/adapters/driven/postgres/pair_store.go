package postgres

import (
	"context"
	"database/sql"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PairStore = (*PairStore)(nil)

// PairStore implements driven.PairStore using PostgreSQL
type PairStore struct {
	db *DB
}

// NewPairStore creates a new PairStore
func NewPairStore(db *DB) *PairStore {
	return &PairStore{db: db}
}

// ReplacePending replaces the tenant's pending pairs with the given set.
// Ignored and merged pairs survive; a rescan never resurfaces a pair the
// tenant already dealt with.
func (s *PairStore) ReplacePending(ctx context.Context, tenantID string, pairs []*domain.DuplicatePair) error {
	if tenantID == "" {
		return domain.ErrInvalidInput
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM duplicate_pairs WHERE tenant_id = $1 AND status = 'pending'", tenantID); err != nil {
			return err
		}

		// ON CONFLICT DO NOTHING: a non-pending row for the same unordered
		// pair wins over the fresh candidate.
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO duplicate_pairs (id, tenant_id, doc_a_id, doc_b_id, similarity, status, detected_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6)
			ON CONFLICT (tenant_id, doc_a_id, doc_b_id) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range pairs {
			a, b := domain.CanonicalPair(p.DocAID, p.DocBID)
			if _, err := stmt.ExecContext(ctx, p.ID, tenantID, a, b, p.Similarity, p.DetectedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByTenant returns the tenant's pairs, best similarity first. Ties order
// by document ids so rescans of an unchanged index list identically even
// though pending rows get fresh pair ids each scan.
func (s *PairStore) ListByTenant(ctx context.Context, tenantID string) ([]*domain.DuplicatePair, error) {
	query := `
		SELECT id, tenant_id, doc_a_id, doc_b_id, similarity, status, detected_at
		FROM duplicate_pairs
		WHERE tenant_id = $1
		ORDER BY similarity DESC, doc_a_id, doc_b_id
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*domain.DuplicatePair
	for rows.Next() {
		var p domain.DuplicatePair
		if err := rows.Scan(&p.ID, &p.TenantID, &p.DocAID, &p.DocBID, &p.Similarity, &p.Status, &p.DetectedAt); err != nil {
			return nil, err
		}
		pairs = append(pairs, &p)
	}
	return pairs, rows.Err()
}

// Get retrieves one pair scoped to the tenant
func (s *PairStore) Get(ctx context.Context, tenantID, pairID string) (*domain.DuplicatePair, error) {
	query := `
		SELECT id, tenant_id, doc_a_id, doc_b_id, similarity, status, detected_at
		FROM duplicate_pairs
		WHERE tenant_id = $1 AND id = $2
	`
	var p domain.DuplicatePair
	err := s.db.QueryRowContext(ctx, query, tenantID, pairID).
		Scan(&p.ID, &p.TenantID, &p.DocAID, &p.DocBID, &p.Similarity, &p.Status, &p.DetectedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetStatus updates a pair's status
func (s *PairStore) SetStatus(ctx context.Context, tenantID, pairID string, status domain.PairStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE duplicate_pairs SET status = $3 WHERE tenant_id = $1 AND id = $2",
		tenantID, pairID, status)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
