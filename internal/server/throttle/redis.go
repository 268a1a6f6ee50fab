package throttle

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter and starts the window expiry on the
// first hit, atomically.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisThrottle keeps counters in Redis so every instance shares them.
type RedisThrottle struct {
	client Cmdable
	policy Policy
	prefix string
}

// Cmdable is the subset of redis commands RedisThrottle needs.
type Cmdable interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisThrottle(client Cmdable, p Policy) *RedisThrottle {
	return &RedisThrottle{client: client, policy: p, prefix: "fittrack:login:"}
}

func (r *RedisThrottle) key(identifier string) string {
	return r.prefix + Normalize(identifier)
}

func (r *RedisThrottle) Allow(ctx context.Context, identifier string) (bool, error) {
	n, err := incrScript.Run(ctx, r.client, []string{r.key(identifier)}, r.policy.Window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis throttle: %w", err)
	}
	return n <= int64(r.policy.MaxAttempts), nil
}

func (r *RedisThrottle) Clear(ctx context.Context, identifier string) error {
	if err := r.client.Del(ctx, r.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis throttle: %w", err)
	}
	return nil
}
