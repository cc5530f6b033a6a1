// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ adapter.Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli   *redis.Client
	tries int
	wait  time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, tries: 5, wait: 50 * time.Millisecond}
}

// TryLock returns domain.ErrConflict when the key is still held after all retries.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrConflict
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases key only if token still owns it.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
