package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.APIKeyStore = (*APIKeyStore)(nil)

// APIKeyStore implements driven.APIKeyStore using PostgreSQL
type APIKeyStore struct {
	db *DB
}

// NewAPIKeyStore creates a new APIKeyStore
func NewAPIKeyStore(db *DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Save creates or updates an API key
func (s *APIKeyStore) Save(ctx context.Context, key *domain.APIKey) error {
	if key.ID == "" || key.TenantID == "" {
		return domain.ErrInvalidInput
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO api_keys (id, tenant_id, secret_hash, label, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			secret_hash = EXCLUDED.secret_hash,
			label = EXCLUDED.label,
			revoked_at = EXCLUDED.revoked_at
	`
	_, err := s.db.ExecContext(ctx, query,
		key.ID, key.TenantID, key.SecretHash, key.Label, key.CreatedAt, NullTime(key.RevokedAt))
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// Get retrieves an API key scoped to the tenant
func (s *APIKeyStore) Get(ctx context.Context, tenantID, keyID string) (*domain.APIKey, error) {
	query := `
		SELECT id, tenant_id, secret_hash, label, created_at, revoked_at
		FROM api_keys
		WHERE tenant_id = $1 AND id = $2
	`
	key := &domain.APIKey{}
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tenantID, keyID).Scan(
		&key.ID, &key.TenantID, &key.SecretHash, &key.Label, &key.CreatedAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	key.RevokedAt = TimePtr(revokedAt)
	return key, nil
}

// ListByTenant retrieves the tenant's API keys
func (s *APIKeyStore) ListByTenant(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	query := `
		SELECT id, tenant_id, secret_hash, label, created_at, revoked_at
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		key := &domain.APIKey{}
		var revokedAt sql.NullTime
		if err := rows.Scan(&key.ID, &key.TenantID, &key.SecretHash, &key.Label, &key.CreatedAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		key.RevokedAt = TimePtr(revokedAt)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Revoke marks an API key as revoked
func (s *APIKeyStore) Revoke(ctx context.Context, tenantID, keyID string) error {
	query := `
		UPDATE api_keys
		SET revoked_at = $3
		WHERE tenant_id = $1 AND id = $2 AND revoked_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, tenantID, keyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
