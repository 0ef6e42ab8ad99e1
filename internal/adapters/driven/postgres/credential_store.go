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
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// API tokens are encrypted with AES-GCM before they reach the table.
type CredentialStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewCredentialStore creates a new CredentialStore
func NewCredentialStore(db *DB, encryptor *SecretEncryptor) *CredentialStore {
	return &CredentialStore{db: db, encryptor: encryptor}
}

// SaveCredentials persists a tenant's repository credentials
func (s *CredentialStore) SaveCredentials(ctx context.Context, creds *domain.TenantCredentials) error {
	if creds.TenantID == "" {
		return domain.ErrInvalidInput
	}

	encrypted, err := s.encryptor.EncryptString(creds.APIToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt api token: %w", err)
	}

	query := `
		INSERT INTO tenant_credentials (tenant_id, base_url, username, api_token_encrypted, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			username = EXCLUDED.username,
			api_token_encrypted = EXCLUDED.api_token_encrypted,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		creds.TenantID, creds.BaseURL, creds.Username, encrypted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// GetCredentials retrieves a tenant's repository credentials
func (s *CredentialStore) GetCredentials(ctx context.Context, tenantID string) (*domain.TenantCredentials, error) {
	query := `
		SELECT tenant_id, base_url, username, api_token_encrypted, updated_at
		FROM tenant_credentials
		WHERE tenant_id = $1
	`
	creds := &domain.TenantCredentials{}
	var encrypted []byte
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&creds.TenantID, &creds.BaseURL, &creds.Username, &encrypted, &creds.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	creds.APIToken, err = s.encryptor.DecryptString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api token: %w", err)
	}
	return creds, nil
}

// DeleteCredentials removes a tenant's repository credentials
func (s *CredentialStore) DeleteCredentials(ctx context.Context, tenantID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tenant_credentials WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
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
