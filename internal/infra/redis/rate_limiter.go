package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	cli *redis.Client
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{cli: c.cli}
}

// INCR and PEXPIRE run as one script so a counter never outlives its window.
// A key left without a TTL gets one on the next hit.
var luaIncrWindow = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 or redis.call("PTTL", KEYS[1]) == -1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return c`)

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := luaIncrWindow.Run(ctx, r.cli, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

func CheckoutKey(userID string) string {
	return "rate_limit:checkout:" + userID
}
