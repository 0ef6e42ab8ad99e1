package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
	"github.com/custodia-labs/concatly-core/internal/runtime"
)

// Ensure ingestService implements IngestService
var _ driving.IngestService = (*ingestService)(nil)

// ingestService loads repository content into the vector index and the
// document mirror.
type ingestService struct {
	vectorIndex   driven.VectorIndex
	documentStore driven.DocumentStore
	credStore     driven.CredentialStore
	repoFactory   driven.RepositoryFactory
	services      *runtime.Services
	cache         driven.EmbeddingCache
	normalisers   driven.NormaliserRegistry
	defaults      domain.PairingDefaults
	logger        *slog.Logger
}

// maxEmbedChars caps the text sent to the embedding provider. Pages longer
// than this are represented by their head, matching provider token limits.
const maxEmbedChars = 8000

// IngestServiceConfig holds dependencies for the ingest service.
type IngestServiceConfig struct {
	VectorIndex   driven.VectorIndex
	DocumentStore driven.DocumentStore
	CredStore     driven.CredentialStore
	RepoFactory   driven.RepositoryFactory
	Services      *runtime.Services

	// Cache is optional; when set, unchanged content skips the embedding call.
	Cache driven.EmbeddingCache

	// Normalisers is optional; when set, repository markup is reduced to
	// plain text before embedding.
	Normalisers driven.NormaliserRegistry

	Defaults domain.PairingDefaults
	Logger   *slog.Logger
}

// NewIngestService creates a new IngestService
func NewIngestService(cfg IngestServiceConfig) driving.IngestService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestService{
		vectorIndex:   cfg.VectorIndex,
		documentStore: cfg.DocumentStore,
		credStore:     cfg.CredStore,
		repoFactory:   cfg.RepoFactory,
		services:      cfg.Services,
		cache:         cfg.Cache,
		normalisers:   cfg.Normalisers,
		defaults:      cfg.Defaults,
		logger:        logger,
	}
}

// IngestContainer fetches a container's pages, embeds them, and indexes them.
func (s *ingestService) IngestContainer(ctx context.Context, tenantID, containerID string, limit int) (*driving.IngestResult, error) {
	if tenantID == "" || containerID == "" {
		return nil, domain.ErrInvalidInput
	}
	emb := s.services.EmbeddingService()
	if emb == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	repo, err := repositoryForTenant(ctx, s.credStore, s.repoFactory, tenantID)
	if err != nil {
		return nil, err
	}

	snaps, err := repo.ListContainerDocuments(ctx, containerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list container %s: %w", containerID, err)
	}

	result := &driving.IngestResult{TenantID: tenantID, ContainerID: containerID}
	for _, snap := range snaps {
		if len(snap.Content) < s.defaults.MinContentLength {
			result.Skipped++
			continue
		}
		if err := s.indexSnapshot(ctx, emb, tenantID, snap); err != nil {
			s.logger.Warn("failed to index document", "tenant_id", tenantID, "doc_id", snap.DocID, "error", err)
			result.Errors++
			continue
		}
		result.DocumentsAdded++
	}

	s.logger.Info("container ingested",
		"tenant_id", tenantID, "container_id", containerID,
		"added", result.DocumentsAdded, "skipped", result.Skipped, "errors", result.Errors)
	return result, nil
}

// ReindexDocuments re-fetches and re-embeds specific documents. Documents no
// longer in the repository are dropped from the index and mirror.
func (s *ingestService) ReindexDocuments(ctx context.Context, tenantID string, docIDs []string) (*driving.IngestResult, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	emb := s.services.EmbeddingService()
	if emb == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	repo, err := repositoryForTenant(ctx, s.credStore, s.repoFactory, tenantID)
	if err != nil {
		return nil, err
	}

	result := &driving.IngestResult{TenantID: tenantID}
	for _, docID := range docIDs {
		snap, err := repo.GetDocument(ctx, docID)
		if errors.Is(err, domain.ErrNotFound) {
			// Gone from the repository; drop our copies.
			_ = s.vectorIndex.Delete(ctx, tenantID, docID)
			_ = s.documentStore.Delete(ctx, tenantID, docID)
			result.Skipped++
			continue
		}
		if err != nil {
			s.logger.Warn("failed to fetch document for reindex", "tenant_id", tenantID, "doc_id", docID, "error", err)
			result.Errors++
			continue
		}
		if err := s.indexSnapshot(ctx, emb, tenantID, snap); err != nil {
			s.logger.Warn("failed to reindex document", "tenant_id", tenantID, "doc_id", docID, "error", err)
			result.Errors++
			continue
		}
		result.DocumentsAdded++
	}
	return result, nil
}

// indexSnapshot embeds a snapshot and writes it to the index and the mirror.
func (s *ingestService) indexSnapshot(ctx context.Context, emb driven.EmbeddingService, tenantID string, snap *domain.DocumentSnapshot) error {
	hash := domain.ContentHash(snap.Content)
	input := s.embedInput(snap)
	vec, err := s.embedWithCache(ctx, emb, domain.ContentHash(input), input)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          snap.DocID,
		TenantID:    tenantID,
		Title:       snap.Title,
		ContentHash: hash,
		URL:         snap.URL,
		ContainerID: snap.ContainerID,
		Embedding:   vec,
		IndexedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.vectorIndex.Upsert(ctx, tenantID, doc); err != nil {
		return fmt.Errorf("index upsert failed: %w", err)
	}
	if err := s.documentStore.Save(ctx, doc); err != nil {
		return fmt.Errorf("mirror save failed: %w", err)
	}
	return nil
}

// embedInput builds the text sent to the embedding provider: the title plus
// the page body reduced to plain text and truncated.
func (s *ingestService) embedInput(snap *domain.DocumentSnapshot) string {
	content := snap.Content
	if s.normalisers != nil {
		mimeType := snap.Metadata["content_type"]
		if mimeType == "" {
			mimeType = "text/html"
		}
		if n := s.normalisers.Get(mimeType); n != nil {
			content = n.Normalise(content, mimeType)
		}
	}
	text := snap.Title + "\n\n" + content
	return truncateToRune(text, maxEmbedChars)
}

// truncateToRune caps s at max bytes without splitting a UTF-8 sequence.
func truncateToRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// embedWithCache consults the embedding cache before calling the provider.
// Cache failures are logged and ignored.
func (s *ingestService) embedWithCache(ctx context.Context, emb driven.EmbeddingService, hash, content string) ([]float32, error) {
	if s.cache != nil {
		vec, ok, err := s.cache.Get(ctx, hash)
		if err != nil {
			s.logger.Warn("embedding cache lookup failed", "error", err)
		} else if ok {
			return vec, nil
		}
	}

	vec, err := emb.EmbedDocument(ctx, content)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, hash, vec, 0); err != nil {
			s.logger.Warn("embedding cache store failed", "error", err)
		}
	}
	return vec, nil
}
