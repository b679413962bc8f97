package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	adapter "navfund/internal/adapters/redis"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

const defaultRetryInterval = 25 * time.Millisecond

// Locker is a distributed lock on SET NX with an expiry. Each holder writes a
// random token and only deletes the key while it still carries that token.
type Locker struct {
	client *adapter.Client
	ttl    time.Duration
	retry  time.Duration
	log    *logger.Logger
}

// NewLocker creates a redis-backed locker. ttl bounds how long a crashed holder blocks others.
func NewLocker(client *adapter.Client, ttl time.Duration, log *logger.Logger) *Locker {
	if log == nil {
		log = logger.Get()
	}
	return &Locker{
		client: client,
		ttl:    ttl,
		retry:  defaultRetryInterval,
		log:    log.With("component", "redis_locker"),
	}
}

// Lock polls until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return nil, errors.Wrapf(err, "acquire lock %s", key)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { l.release(key, token) })
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "wait for lock %s", key)
		case <-ticker.C:
		}
	}
}

// release uses a fresh context so a canceled request still frees the key.
// A failed release leaves the key held until its TTL expires.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.client.ReleaseLock(ctx, key, token); err != nil {
		l.log.Warnw("Failed to release lock, key held until expiry",
			"key", key,
			"ttl", l.ttl,
			"error", err,
		)
	}
}
