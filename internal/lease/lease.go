// Package lease provides a Redis-backed mutual exclusion lease so only one
// replica runs a scheduler tick at a time.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while this owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

// Redis holds leases in Redis under a fixed owner identity.
type Redis struct {
	client *redis.Client
	owner  string
}

// NewRedis returns a lease holder identified by owner (a hostname or UUID).
func NewRedis(client *redis.Client, owner string) *Redis {
	return &Redis{client: client, owner: owner}
}

// Dial connects to Redis at addr.
func Dial(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Acquire takes key for ttl. It reports false when another owner holds it.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, r.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return ok, nil
}

// Release gives up key if this owner still holds it.
func (r *Redis) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{key}, r.owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}
