package redis

import (
	"context"
	"testing"
	"time"
)

func TestEmbeddingCache_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewEmbeddingCache(client)
	ctx := context.Background()
	vector := []float32{0.1, 0.2, 0.3, 0.4}

	if err := cache.Set(ctx, "hash-1", vector, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found, err := cache.Get(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if len(got) != len(vector) {
		t.Fatalf("expected %d dimensions, got %d", len(vector), len(got))
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("dimension %d: expected %f, got %f", i, vector[i], got[i])
		}
	}
}

func TestEmbeddingCache_Miss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewEmbeddingCache(client)

	got, found, err := cache.Get(context.Background(), "unknown-hash")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected cache miss")
	}
	if got != nil {
		t.Errorf("expected nil vector on miss, got %v", got)
	}
}

func TestEmbeddingCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewEmbeddingCache(client)
	ctx := context.Background()

	client.Set(ctx, embeddingKeyPrefix+"bad-hash", "not json", time.Hour)

	_, found, err := cache.Get(ctx, "bad-hash")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected corrupt entry to read as a miss")
	}

	// The corrupt entry should have been dropped.
	exists, err := client.Exists(ctx, embeddingKeyPrefix+"bad-hash").Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists != 0 {
		t.Error("expected corrupt entry to be deleted")
	}
}

func TestEmbeddingCache_DefaultTTL(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewEmbeddingCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "hash-ttl", []float32{1}, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := client.TTL(ctx, embeddingKeyPrefix+"hash-ttl").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 {
		t.Errorf("expected a positive TTL, got %v", ttl)
	}
}
