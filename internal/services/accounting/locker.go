package accounting

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"navfund/pkg/errors"
)

// Locker serializes operations on one fund. The returned unlock is idempotent.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockKey returns the lock key for a fund.
func LockKey(fundID uuid.UUID) string {
	return "fund:lock:" + fundID.String()
}

// MutexLocker is an in-process Locker. Waiters give up when ctx is done.
type MutexLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMutexLocker creates an in-process locker
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{slots: make(map[string]chan struct{})}
}

// Lock blocks until key is free or ctx is done.
func (l *MutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "wait for lock %s", key)
	}
}
