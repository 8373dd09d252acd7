package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// releaseTimeout bounds lock release after the task context is gone.
const releaseTimeout = 5 * time.Second

// Lock is a held uniqueness lock.
type Lock interface {
	Key() string
	// Release frees the lock if it is still owned by this holder.
	// It returns ErrLockLost when the TTL expired and another holder took over.
	Release(ctx context.Context) error
}

// Locker is a mutual exclusion primitive keyed by task signature.
// Locks expire after their TTL so a crashed holder cannot block a key forever.
type Locker interface {
	// Acquire takes the lock or returns ErrLockHeld.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	// Locked reports whether key is currently held by anyone.
	Locked(ctx context.Context, key string) (bool, error)
}

// WithUniquenessLock runs body while holding the lock for key.
//
// The lock is acquired before body starts and released after it returns,
// whether it succeeded, failed or panicked. Body gets a context that expires
// together with the lock. ErrLockHeld is returned without running body when
// another holder owns the key.
func WithUniquenessLock(ctx context.Context, locker Locker, key string, ttl time.Duration, body func(ctx context.Context) error) (err error) {
	if locker == nil {
		return ErrLockerNil
	}

	lock, err := locker.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := lock.Release(relCtx); relErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release lock %q: %w", key, relErr))
		}
	}()

	bodyCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	return body(bodyCtx)
}

// MemoryLocker is an in-process Locker for tests and single-process setups.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLockEntry
	now   func() time.Time
}

type memoryLockEntry struct {
	token     uuid.UUID
	expiresAt time.Time
}

// NewMemoryLocker creates an in-memory locker. A nil clock means time.Now.
func NewMemoryLocker(now func() time.Time) *MemoryLocker {
	if now == nil {
		now = time.Now
	}
	return &MemoryLocker{
		locks: make(map[string]memoryLockEntry),
		now:   now,
	}
}

// Acquire implements Locker
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.locks[key]; ok && entry.expiresAt.After(now) {
		return nil, ErrLockHeld
	}

	token := uuid.New()
	l.locks[key] = memoryLockEntry{token: token, expiresAt: now.Add(ttl)}

	return &memoryLock{locker: l, key: key, token: token}, nil
}

// Locked implements Locker
func (l *MemoryLocker) Locked(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	return ok && entry.expiresAt.After(l.now()), nil
}

func (l *MemoryLocker) release(key string, token uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok || entry.token != token {
		return ErrLockLost
	}
	delete(l.locks, key)
	return nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  uuid.UUID
}

func (m *memoryLock) Key() string { return m.key }

func (m *memoryLock) Release(_ context.Context) error {
	return m.locker.release(m.key, m.token)
}
