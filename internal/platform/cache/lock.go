package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked indicates another holder owns the lock.
var ErrLocked = errors.New("platform/cache: lock held elsewhere")

// Locker hands out short-lived Redis locks.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewLocker builds a Locker whose locks expire after ttl.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl}
}

// Acquire obtains key or returns ErrLocked. The returned func releases it.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	if err != nil {
		return nil, fmt.Errorf("platform/cache: obtain %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
