package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort distributed mutex. The store's uniqueness constraint stays the
// source of truth; the lock only narrows the window in which two checkouts race.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
