package services

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
	"github.com/custodia-labs/concatly-core/internal/normalisers"
)

func (env *testEnv) ingestService() driving.IngestService {
	return NewIngestService(IngestServiceConfig{
		VectorIndex:   env.index,
		DocumentStore: env.docs,
		CredStore:     env.creds,
		RepoFactory:   env.factory,
		Services:      env.rt,
		Defaults:      domain.DefaultPairingDefaults(),
	})
}

func TestIngestService_IngestContainer(t *testing.T) {
	env := newTestEnv(t)
	env.seedRepoDoc("doc-a", "ENG", "Guide A", longBody+" A")
	env.seedRepoDoc("doc-b", "ENG", "Guide B", longBody+" B")
	env.seedRepoDoc("doc-stub", "ENG", "Stub", "tiny")
	env.seedRepoDoc("doc-x", "OPS", "Other space", longBody+" X")

	result, err := env.ingestService().IngestContainer(context.Background(), testTenant, "ENG", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DocumentsAdded != 2 {
		t.Errorf("expected 2 added, got %d", result.DocumentsAdded)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped short page, got %d", result.Skipped)
	}
	if result.Errors != 0 {
		t.Errorf("expected no errors, got %d", result.Errors)
	}

	count, _ := env.index.Count(context.Background(), testTenant)
	if count != 2 {
		t.Errorf("expected 2 indexed docs, got %d", count)
	}
	doc, err := env.docs.Get(context.Background(), testTenant, "doc-a")
	if err != nil {
		t.Fatalf("mirror missing doc-a: %v", err)
	}
	if doc.ContentHash != domain.ContentHash(longBody+" A") {
		t.Error("mirror hash does not match repository content")
	}
	if doc.ContainerID != "ENG" {
		t.Errorf("unexpected container: %s", doc.ContainerID)
	}
}

func TestIngestService_IngestContainerLimit(t *testing.T) {
	env := newTestEnv(t)
	env.seedRepoDoc("doc-a", "ENG", "A", longBody)
	env.seedRepoDoc("doc-b", "ENG", "B", longBody)
	env.seedRepoDoc("doc-c", "ENG", "C", longBody)

	result, err := env.ingestService().IngestContainer(context.Background(), testTenant, "ENG", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DocumentsAdded != 2 {
		t.Errorf("expected limit of 2 respected, got %d", result.DocumentsAdded)
	}
}

func TestIngestService_IngestWithoutEmbedding(t *testing.T) {
	env := newTestEnv(t)
	env.rt.SetEmbeddingService(nil)

	_, err := env.ingestService().IngestContainer(context.Background(), testTenant, "ENG", 0)
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestIngestService_ReindexDocuments(t *testing.T) {
	env := newTestEnv(t)
	env.seedRepoDoc("doc-a", "ENG", "A", longBody+" updated")
	env.seedIndexedDoc(t, "doc-a", "ENG", longBody+" stale", vecBase)
	env.seedIndexedDoc(t, "doc-gone", "ENG", longBody+" deleted upstream", vecNear)

	result, err := env.ingestService().ReindexDocuments(context.Background(), testTenant, []string{"doc-a", "doc-gone"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DocumentsAdded != 1 || result.Skipped != 1 {
		t.Errorf("expected 1 added and 1 skipped, got %+v", result)
	}

	// The stale mirror entry was refreshed.
	doc, err := env.docs.Get(context.Background(), testTenant, "doc-a")
	if err != nil {
		t.Fatalf("mirror missing doc-a: %v", err)
	}
	if doc.ContentHash != domain.ContentHash(longBody+" updated") {
		t.Error("expected refreshed content hash")
	}

	// The upstream-deleted doc was dropped from the index and mirror.
	if _, err := env.docs.Get(context.Background(), testTenant, "doc-gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("expected doc-gone removed from mirror")
	}
	count, _ := env.index.Count(context.Background(), testTenant)
	if count != 1 {
		t.Errorf("expected 1 doc left in index, got %d", count)
	}
}

func TestIngestService_EmbeddingCacheSkipsProvider(t *testing.T) {
	env := newTestEnv(t)
	env.seedRepoDoc("doc-a", "ENG", "Guide A", longBody)

	cache := mocks.NewMockEmbeddingCache()
	svc := NewIngestService(IngestServiceConfig{
		VectorIndex:   env.index,
		DocumentStore: env.docs,
		CredStore:     env.creds,
		RepoFactory:   env.factory,
		Services:      env.rt,
		Cache:         cache,
		Defaults:      domain.DefaultPairingDefaults(),
	})

	if _, err := svc.IngestContainer(context.Background(), testTenant, "ENG", 0); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	callsAfterFirst := env.embedding.EmbedCalls
	if callsAfterFirst == 0 {
		t.Fatal("expected the provider to be called on a cold cache")
	}

	if _, err := svc.IngestContainer(context.Background(), testTenant, "ENG", 0); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if env.embedding.EmbedCalls != callsAfterFirst {
		t.Errorf("expected cached content to skip the provider, got %d extra calls",
			env.embedding.EmbedCalls-callsAfterFirst)
	}
	if cache.Hits == 0 {
		t.Error("expected at least one cache hit")
	}
}

func TestIngestService_CacheFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.seedRepoDoc("doc-a", "ENG", "Guide A", longBody)

	cache := mocks.NewMockEmbeddingCache()
	cache.GetErr = errors.New("redis down")
	cache.SetErr = errors.New("redis down")

	svc := NewIngestService(IngestServiceConfig{
		VectorIndex:   env.index,
		DocumentStore: env.docs,
		CredStore:     env.creds,
		RepoFactory:   env.factory,
		Services:      env.rt,
		Cache:         cache,
		Defaults:      domain.DefaultPairingDefaults(),
	})

	result, err := svc.IngestContainer(context.Background(), testTenant, "ENG", 0)
	if err != nil {
		t.Fatalf("ingest should survive a broken cache: %v", err)
	}
	if result.DocumentsAdded != 1 {
		t.Errorf("expected 1 added, got %d", result.DocumentsAdded)
	}
}

func TestIngestService_NormalisesMarkupBeforeEmbedding(t *testing.T) {
	env := newTestEnv(t)
	inner := "Install the agent and configure the endpoint before you start."
	env.repo.Seed(&domain.DocumentSnapshot{
		DocID:       "doc-a",
		TenantID:    testTenant,
		Title:       "Setup Guide",
		Content:     "<h1>Setup</h1><p>" + inner + "</p>",
		ContainerID: "ENG",
		Metadata:    map[string]string{"content_type": "text/html"},
	})

	// Pin the embedding for the normalised input; raw markup would miss it.
	pinned := []float32{0.5, 0.5, 0, 0, 0, 0, 0, 0}
	env.embedding.Fixed["Setup Guide\n\nSetup "+inner] = pinned

	svc := NewIngestService(IngestServiceConfig{
		VectorIndex:   env.index,
		DocumentStore: env.docs,
		CredStore:     env.creds,
		RepoFactory:   env.factory,
		Services:      env.rt,
		Normalisers:   normalisers.DefaultRegistry(),
		Defaults:      domain.DefaultPairingDefaults(),
	})

	if _, err := svc.IngestContainer(context.Background(), testTenant, "ENG", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	indexed, err := env.index.ListDocuments(context.Background(), testTenant, "ENG")
	if err != nil || len(indexed) != 1 {
		t.Fatalf("expected 1 indexed doc, got %d (err %v)", len(indexed), err)
	}
	for i, v := range pinned {
		if indexed[0].Embedding[i] != v {
			t.Fatal("embedding was not computed from the normalised text")
		}
	}
}

func TestTruncateToRune(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"under limit", "héllo", 10, "héllo"},
		{"ascii boundary", "abcdef", 4, "abcd"},
		{"cut lands mid rune", "abécd", 3, "ab"},
		{"cut lands on rune end", "abécd", 4, "abé"},
		{"four byte rune dropped whole", "a\U0001F600", 3, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateToRune(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncateToRune(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result %q is not valid UTF-8", got)
			}
		})
	}
}
