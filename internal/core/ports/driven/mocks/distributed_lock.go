package mocks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockDistributedLock is an in-memory DistributedLock for testing. TTLs are
// recorded but never expire; tests release locks explicitly.
type MockDistributedLock struct {
	mu    sync.Mutex
	held  map[string]bool
	// AcquireErr is returned from Acquire when set.
	AcquireErr error
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]bool)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[name] {
		return errors.New("lock not held")
	}
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error { return nil }

// Held reports whether the named lock is currently held. Test helper.
func (m *MockDistributedLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[name]
}
