package runtime

import (
	"context"
	"sync"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Services holds references to dynamically configurable services.
// AI services (Embedding, MergeDrafter) can be updated at runtime via API.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	// Dynamic services (can be nil, updated at runtime)
	embeddingService driven.EmbeddingService
	mergeDrafter     driven.MergeDrafter
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// MergeDrafter returns the current merge drafter (may be nil)
func (s *Services) MergeDrafter() driven.MergeDrafter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergeDrafter
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close old service
	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetMergeDrafter updates the merge drafter.
// Closes the old service if present. Updates config flags.
func (s *Services) SetMergeDrafter(svc driven.MergeDrafter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close old service
	if s.mergeDrafter != nil {
		_ = s.mergeDrafter.Close()
	}

	s.mergeDrafter = svc
	s.config.SetDrafterAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.mergeDrafter != nil {
		_ = s.mergeDrafter.Close()
		s.mergeDrafter = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetDrafterAvailable(false)

	return nil
}

// ValidateAndSetEmbedding validates connectivity before setting embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	// Validate connectivity
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetMergeDrafter validates connectivity before setting the drafter
func (s *Services) ValidateAndSetMergeDrafter(ctx context.Context, svc driven.MergeDrafter) error {
	if svc == nil {
		s.SetMergeDrafter(nil)
		return nil
	}

	// Validate connectivity
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetMergeDrafter(svc)
	return nil
}
