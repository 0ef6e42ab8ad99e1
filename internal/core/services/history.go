package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// Ensure historyService implements HistoryService
var _ driving.HistoryService = (*historyService)(nil)

// historyService exposes the merge ledger for reading and reconciliation
type historyService struct {
	ledger      driven.MergeLedger
	credStore   driven.CredentialStore
	repoFactory driven.RepositoryFactory
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(
	ledger driven.MergeLedger,
	credStore driven.CredentialStore,
	repoFactory driven.RepositoryFactory,
) driving.HistoryService {
	return &historyService{
		ledger:      ledger,
		credStore:   credStore,
		repoFactory: repoFactory,
	}
}

// ListMergeHistory returns the tenant's operations chronologically
func (s *historyService) ListMergeHistory(ctx context.Context, tenantID string) ([]*domain.MergeOperation, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.ledger.ListForTenant(ctx, tenantID)
}

// Lineage returns the merge chain transitively touching a document
func (s *historyService) Lineage(ctx context.Context, tenantID, docID string) ([]*domain.MergeOperation, error) {
	if tenantID == "" || docID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.ledger.LineageFor(ctx, tenantID, docID)
}

// CheckConsistency compares the ledger against the content repository and
// reports mismatches. A crash between apply and record is the usual cause.
// Reports are informational only: intent cannot be reconstructed safely, so
// nothing is auto-repaired.
func (s *historyService) CheckConsistency(ctx context.Context, tenantID string) ([]domain.InconsistencyReport, error) {
	ops, err := s.ledger.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	repo, err := repositoryForTenant(ctx, s.credStore, s.repoFactory, tenantID)
	if err != nil {
		return nil, err
	}

	var reports []domain.InconsistencyReport
	for _, op := range ops {
		if !op.Active() {
			continue
		}

		// The kept document of an active operation must still exist.
		if _, err := repo.GetDocument(ctx, op.KeptDocID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				reports = append(reports, domain.InconsistencyReport{
					TenantID:    tenantID,
					DocID:       op.KeptDocID,
					Description: fmt.Sprintf("kept document of merge %s is missing from the repository", op.ID),
				})
				continue
			}
			return nil, fmt.Errorf("failed to check doc %s: %w", op.KeptDocID, err)
		}

		// The deleted document of an active operation must be gone. Its
		// presence means a delete was recorded that never took effect, or
		// someone restored the page outside the undo flow.
		if _, err := repo.GetDocument(ctx, op.DeletedDocID); err == nil {
			reports = append(reports, domain.InconsistencyReport{
				TenantID:    tenantID,
				DocID:       op.DeletedDocID,
				Description: fmt.Sprintf("document consumed by merge %s is still present in the repository", op.ID),
			})
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to check doc %s: %w", op.DeletedDocID, err)
		}
	}
	return reports, nil
}
