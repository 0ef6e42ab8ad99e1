package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/concatly-core/internal/runtime"
)

const testTenant = "tenant-a"

// testEnv wires every mock a service could need. Each test uses the slices
// of it that matter.
type testEnv struct {
	pairs     *mocks.MockPairStore
	docs      *mocks.MockDocumentStore
	index     *mocks.MockVectorIndex
	ledger    *mocks.MockMergeLedger
	creds     *mocks.MockCredentialStore
	repo      *mocks.MockContentRepository
	factory   *mocks.MockRepositoryFactory
	lock      *mocks.MockDistributedLock
	queue     *mocks.MockTaskQueue
	embedding *mocks.MockEmbeddingService
	drafter   *mocks.MockMergeDrafter
	rt        *runtime.Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		pairs:     mocks.NewMockPairStore(),
		docs:      mocks.NewMockDocumentStore(),
		index:     mocks.NewMockVectorIndex(),
		ledger:    mocks.NewMockMergeLedger(),
		creds:     mocks.NewMockCredentialStore(),
		repo:      mocks.NewMockContentRepository(),
		lock:      mocks.NewMockDistributedLock(),
		queue:     mocks.NewMockTaskQueue(),
		embedding: mocks.NewMockEmbeddingService(),
		drafter:   mocks.NewMockMergeDrafter(),
	}
	env.factory = mocks.NewMockRepositoryFactory(env.repo)

	env.rt = runtime.NewServices(domain.NewRuntimeConfig("postgres"))
	env.rt.SetEmbeddingService(env.embedding)
	env.rt.SetMergeDrafter(env.drafter)

	_ = env.creds.SaveCredentials(context.Background(), &domain.TenantCredentials{
		TenantID: testTenant,
		BaseURL:  "https://wiki.example.com",
		Username: "svc-account",
		APIToken: "secret-token",
	})
	return env
}

func (env *testEnv) mergeOrchestrator() *MergeOrchestrator {
	return NewMergeOrchestrator(MergeOrchestratorConfig{
		PairStore:     env.pairs,
		DocumentStore: env.docs,
		VectorIndex:   env.index,
		Ledger:        env.ledger,
		CredStore:     env.creds,
		RepoFactory:   env.factory,
		Lock:          env.lock,
		Services:      env.rt,
	})
}

// seedRepoDoc puts a document into the fake content repository.
func (env *testEnv) seedRepoDoc(id, container, title, content string) {
	env.repo.Seed(&domain.DocumentSnapshot{
		DocID:       id,
		TenantID:    testTenant,
		Title:       title,
		Content:     content,
		ContainerID: container,
		URL:         "https://wiki.example.com/pages/" + id,
	})
}

// seedIndexedDoc puts a document with a fixed embedding into the vector
// index and the mirror store.
func (env *testEnv) seedIndexedDoc(t *testing.T, id, container, content string, vec []float32) {
	t.Helper()
	doc := &domain.Document{
		ID:          id,
		TenantID:    testTenant,
		Title:       "Title of " + id,
		ContentHash: domain.ContentHash(content),
		ContainerID: container,
		Embedding:   vec,
		IndexedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := env.index.Upsert(context.Background(), testTenant, doc); err != nil {
		t.Fatalf("seed index: %v", err)
	}
	if err := env.docs.Save(context.Background(), doc); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}
}

// seedPair caches pending pairs for the tenant.
func (env *testEnv) seedPairs(t *testing.T, pairs ...*domain.DuplicatePair) {
	t.Helper()
	if err := env.pairs.ReplacePending(context.Background(), testTenant, pairs); err != nil {
		t.Fatalf("seed pairs: %v", err)
	}
}

func pendingPair(id, a, b string, similarity float64) *domain.DuplicatePair {
	docA, docB := domain.CanonicalPair(a, b)
	return &domain.DuplicatePair{
		ID:         id,
		TenantID:   testTenant,
		DocAID:     docA,
		DocBID:     docB,
		Similarity: similarity,
		Status:     domain.PairStatusPending,
		DetectedAt: time.Now(),
	}
}
