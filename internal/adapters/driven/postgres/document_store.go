package postgres

import (
	"context"
	"database/sql"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL.
// It mirrors titles, hashes, and container membership; embeddings live in the
// vector index only.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentUpsert = `
	INSERT INTO documents (id, tenant_id, title, content_hash, url, container_id, indexed_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (tenant_id, id) DO UPDATE SET
		title = EXCLUDED.title,
		content_hash = EXCLUDED.content_hash,
		url = EXCLUDED.url,
		container_id = EXCLUDED.container_id,
		indexed_at = EXCLUDED.indexed_at,
		updated_at = EXCLUDED.updated_at
`

// Save creates or updates a document
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	if doc.TenantID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, documentUpsert,
		doc.ID,
		doc.TenantID,
		doc.Title,
		doc.ContentHash,
		doc.URL,
		doc.ContainerID,
		doc.IndexedAt,
		doc.UpdatedAt,
	)
	return err
}

// SaveBatch saves multiple documents in a transaction
func (s *DocumentStore) SaveBatch(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, documentUpsert)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, doc := range docs {
			if doc.TenantID == "" {
				return domain.ErrInvalidInput
			}
			_, err = stmt.ExecContext(ctx,
				doc.ID,
				doc.TenantID,
				doc.Title,
				doc.ContentHash,
				doc.URL,
				doc.ContainerID,
				doc.IndexedAt,
				doc.UpdatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a document scoped to the tenant
func (s *DocumentStore) Get(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	query := `
		SELECT id, tenant_id, title, content_hash, url, container_id, indexed_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND id = $2
	`
	return scanDocument(s.db.QueryRowContext(ctx, query, tenantID, id))
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.Title,
		&doc.ContentHash,
		&doc.URL,
		&doc.ContainerID,
		&doc.IndexedAt,
		&doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByTenant retrieves the tenant's documents, optionally filtered to one container
func (s *DocumentStore) ListByTenant(ctx context.Context, tenantID, containerID string) ([]*domain.Document, error) {
	query := `
		SELECT id, tenant_id, title, content_hash, url, container_id, indexed_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND ($2 = '' OR container_id = $2)
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.TenantID,
			&doc.Title,
			&doc.ContentHash,
			&doc.URL,
			&doc.ContainerID,
			&doc.IndexedAt,
			&doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete removes a document scoped to the tenant
func (s *DocumentStore) Delete(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE tenant_id = $1 AND id = $2", tenantID, id)
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

// CountByTenant returns the tenant's document count
func (s *DocumentStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE tenant_id = $1", tenantID).Scan(&count)
	return count, err
}
