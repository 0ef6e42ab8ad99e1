package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
	"github.com/custodia-labs/concatly-core/internal/runtime"
)

// Ensure pairingService implements PairingService
var _ driving.PairingService = (*pairingService)(nil)

// pairingService implements the PairingService interface
type pairingService struct {
	vectorIndex driven.VectorIndex
	pairStore   driven.PairStore
	services    *runtime.Services // Dynamic AI services
	defaults    domain.PairingDefaults
}

// NewPairingService creates a new PairingService.
// The embedding service is accessed dynamically via runtime.Services.
func NewPairingService(
	vectorIndex driven.VectorIndex,
	pairStore driven.PairStore,
	services *runtime.Services,
	defaults domain.PairingDefaults,
) driving.PairingService {
	return &pairingService{
		vectorIndex: vectorIndex,
		pairStore:   pairStore,
		services:    services,
		defaults:    defaults,
	}
}

// ListCandidatePairs returns the tenant's cached pairs, best first
func (s *pairingService) ListCandidatePairs(ctx context.Context, tenantID string) ([]*domain.DuplicatePair, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.pairStore.ListByTenant(ctx, tenantID)
}

// Scan recomputes candidate pairs from the vector index and refreshes the
// cache. The scan is read-only against the index, so re-running it against an
// unchanged index yields the same pairs.
func (s *pairingService) Scan(ctx context.Context, tenantID string, opts driving.PairingOptions) ([]*domain.DuplicatePair, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !s.services.Config().CanDetectDuplicates() {
		return nil, domain.ErrEmbeddingUnavailable
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = s.defaults.SimilarityThreshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v out of range", domain.ErrInvalidInput, threshold)
	}
	neighbors := opts.Neighbors
	if neighbors <= 0 {
		neighbors = s.defaults.NeighborsPerDocument
	}

	docs, err := s.vectorIndex.ListDocuments(ctx, tenantID, opts.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed documents: %w", err)
	}

	// Scoped rescan: only pairs touching the given documents are recomputed.
	scope := make(map[string]bool, len(opts.DocIDs))
	for _, id := range opts.DocIDs {
		scope[id] = true
	}

	now := time.Now().UTC()
	seen := make(map[string]*domain.DuplicatePair)
	for _, doc := range docs {
		if len(scope) > 0 && !scope[doc.ID] {
			continue
		}
		if len(doc.Embedding) == 0 {
			continue
		}

		// k+1 because the document is its own best neighbor.
		found, err := s.vectorIndex.Neighbors(ctx, tenantID, doc.Embedding, neighbors+1)
		if err != nil {
			return nil, fmt.Errorf("neighbor query failed for doc %s: %w", doc.ID, err)
		}
		for _, n := range found {
			if n.Document.ID == doc.ID || n.Similarity < threshold {
				continue
			}
			key := domain.PairKey(doc.ID, n.Document.ID)
			if existing, ok := seen[key]; ok {
				// Symmetric neighbor results collapse to one pair; keep the
				// better score.
				if n.Similarity > existing.Similarity {
					existing.Similarity = n.Similarity
				}
				continue
			}
			a, b := domain.CanonicalPair(doc.ID, n.Document.ID)
			seen[key] = &domain.DuplicatePair{
				ID:         domain.GenerateID(),
				TenantID:   tenantID,
				DocAID:     a,
				DocBID:     b,
				Similarity: n.Similarity,
				Status:     domain.PairStatusPending,
				DetectedAt: now,
			}
		}
	}

	pairs := make([]*domain.DuplicatePair, 0, len(seen))
	for _, p := range seen {
		pairs = append(pairs, p)
	}

	// A scoped rescan must not drop pending pairs outside its scope.
	if len(scope) > 0 {
		existing, err := s.pairStore.ListByTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		for _, p := range existing {
			if p.Status != domain.PairStatusPending {
				continue
			}
			if scope[p.DocAID] || scope[p.DocBID] {
				continue
			}
			pairs = append(pairs, p)
		}
	}
	if err := s.pairStore.ReplacePending(ctx, tenantID, pairs); err != nil {
		return nil, fmt.Errorf("failed to refresh pair cache: %w", err)
	}

	return s.pairStore.ListByTenant(ctx, tenantID)
}

// IgnorePair marks a pair as not-a-duplicate
func (s *pairingService) IgnorePair(ctx context.Context, tenantID, pairID string) error {
	pair, err := s.pairStore.Get(ctx, tenantID, pairID)
	if err != nil {
		return err
	}
	if pair.Status != domain.PairStatusPending {
		return domain.ErrPairNotActionable
	}
	return s.pairStore.SetStatus(ctx, tenantID, pairID, domain.PairStatusIgnored)
}
