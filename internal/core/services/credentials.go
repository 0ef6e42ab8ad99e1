package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// Ensure credentialService implements CredentialService
var _ driving.CredentialService = (*credentialService)(nil)

// credentialService manages tenant content-repository connections
type credentialService struct {
	credStore   driven.CredentialStore
	repoFactory driven.RepositoryFactory
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(credStore driven.CredentialStore, repoFactory driven.RepositoryFactory) driving.CredentialService {
	return &credentialService{
		credStore:   credStore,
		repoFactory: repoFactory,
	}
}

// GetCredentials returns the connection settings with the token blanked
func (s *credentialService) GetCredentials(ctx context.Context, tenantID string) (*domain.TenantCredentials, error) {
	creds, err := s.credStore.GetCredentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	creds.APIToken = ""
	return creds, nil
}

// SaveCredentials verifies the connection before persisting it
func (s *credentialService) SaveCredentials(ctx context.Context, creds *domain.TenantCredentials) error {
	if creds == nil || creds.TenantID == "" {
		return domain.ErrInvalidInput
	}
	if !creds.IsConfigured() {
		return fmt.Errorf("%w: base url, username, and api token are required", domain.ErrInvalidInput)
	}

	repo, err := s.repoFactory.ForTenant(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to build repository client: %w", err)
	}
	if err := repo.TestConnection(ctx); err != nil {
		return fmt.Errorf("repository connection test failed: %w", err)
	}

	creds.UpdatedAt = time.Now().UTC()
	return s.credStore.SaveCredentials(ctx, creds)
}

// TestConnection verifies the stored credentials still work
func (s *credentialService) TestConnection(ctx context.Context, tenantID string) error {
	repo, err := repositoryForTenant(ctx, s.credStore, s.repoFactory, tenantID)
	if err != nil {
		return err
	}
	return repo.TestConnection(ctx)
}
