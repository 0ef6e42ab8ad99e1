package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock serializes merges per tenant using PostgreSQL advisory locks
// when Redis is not deployed.
//
// Advisory locks are session-scoped: the unlock must run on the session that
// took the lock, so each held lock pins a dedicated connection until release.
// There is no TTL. A crashed process frees its locks when its connections
// drop, and Extend has nothing to do.
type AdvisoryLock struct {
	db *DB

	mu   sync.Mutex
	held map[string]*sql.Conn
}

func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:   db,
		held: make(map[string]*sql.Conn),
	}
}

// lockID hashes a lock name to the 64-bit key space advisory locks use.
func lockID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("concatly:lock:" + name))
	return int64(h.Sum64())
}

// Acquire tries to take the named lock without blocking. The ttl is ignored:
// the lock lives as long as its pinned session. Not reentrant, matching the
// Redis implementation, so a second Acquire from the same process is refused.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	if _, ok := l.held[name]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to pin lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID(name)).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, err
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; ok {
		// Lost a local race for the same name.
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID(name))
		_ = conn.Close()
		return false, nil
	}
	l.held[name] = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool. Releasing a
// lock this process does not hold is a no-op.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID(name))
	if closeErr := conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Extend verifies the pinned session is still alive. Advisory locks have no
// TTL to push out, but a dead session means the lock is already gone.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	conn, ok := l.held[name]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("lock %s is not held", name)
	}
	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("lock %s session lost: %w", name, err)
	}
	return nil
}

func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
