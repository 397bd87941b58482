package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	countPrefix = "rl:count:"
	lockPrefix  = "rl:lock:"
)

// Redis is a Limiter backed by a shared Redis instance, for deployments with
// more than one process. Counting uses INCR so concurrent failures against
// one key cannot under-count; two racers both crossing the threshold set the
// same lock, which is harmless.
type Redis struct {
	client *redis.Client
	policy Policy
}

// NewRedis builds a Redis-backed limiter with the given policy.
func NewRedis(client *redis.Client, policy Policy) *Redis {
	if policy.MaxFailures <= 0 {
		policy.MaxFailures = 5
	}
	return &Redis{client: client, policy: policy}
}

// Allow returns a LockedError while key is locked out. Redis transport
// errors fail open: rejecting legitimate users on a cache outage is worse
// than briefly losing brute-force protection.
func (r *Redis) Allow(ctx context.Context, key string, _ time.Time) error {
	ttl, err := r.client.PTTL(ctx, lockPrefix+key).Result()
	if err != nil {
		return nil // fail-open on cache errors
	}
	if ttl > 0 {
		return &LockedError{RetryAfter: ttl}
	}
	return nil
}

// RecordFailure increments the failure counter and arms the lock key once
// the threshold is reached.
func (r *Redis) RecordFailure(ctx context.Context, key string, _ time.Time) error {
	countKey := countPrefix + key
	cnt, err := r.client.Incr(ctx, countKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 && r.policy.Window > 0 {
		r.client.PExpire(ctx, countKey, r.policy.Window)
	}
	if cnt >= int64(r.policy.MaxFailures) {
		if err := r.client.Set(ctx, lockPrefix+key, "1", r.policy.Lockout).Err(); err != nil {
			return err
		}
		r.client.Del(ctx, countKey)
	}
	return nil
}

// RecordSuccess clears the failure counter for key.
func (r *Redis) RecordSuccess(ctx context.Context, key string) error {
	return r.client.Del(ctx, countPrefix+key).Err()
}
