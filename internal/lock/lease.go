// Package lock provides a redis-backed lease so that at most one operator
// runs a sync or trade cycle at a time. Deployments without redis pass a nil
// lease and run unlocked.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/helios-quant/pairtrade/pkg/errors"
)

// releaseScript deletes the lease key only when the holder token still
// matches, so an expired lease taken over by another holder is never deleted
// out from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder TTL lock over one logical cycle.
type Lease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewLease creates a lease over the given key. A nil return from a nil client
// keeps call sites uniform: all Lease methods are nil-safe no-ops.
func NewLease(rdb *redis.Client, key string, ttl time.Duration) *Lease {
	if rdb == nil {
		return nil
	}

	return &Lease{rdb: rdb, key: key, ttl: ttl}
}

// Acquire takes the lease, returning a holder token for Release. A held lease
// fails with ErrCodeLeaseHeld; the caller skips the cycle rather than waiting.
func (l *Lease) Acquire(ctx context.Context) (string, error) {
	if l == nil {
		return "", nil
	}

	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeLeaseHeld, "failed to acquire lease", err)
	}

	if !ok {
		return "", errors.Newf(errors.ErrCodeLeaseHeld, "lease %q is held by another process", l.key)
	}

	return token, nil
}

// Release gives the lease back. Releasing with a stale token is a no-op; the
// TTL already reclaimed the key for the next holder.
func (l *Lease) Release(ctx context.Context, token string) error {
	if l == nil {
		return nil
	}

	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeLeaseHeld, "failed to release lease", err)
	}

	return nil
}
