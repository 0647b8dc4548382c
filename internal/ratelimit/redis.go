package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idees:ratelimit:"

// Redis shares counters between instances. The expiry is set only when the
// key has none, so later calls in the same window leave it untouched.
type Redis struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Check(ctx context.Context, identifier string, p Policy) (Result, error) {
	key := keyPrefix + identifier

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", identifier, err)
	}

	resetIn := ttl.Val()
	if resetIn <= 0 {
		if err := r.client.PExpire(ctx, key, p.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit %s: %w", identifier, err)
		}
		resetIn = p.Window
	}

	count := int(incr.Val())
	if count > p.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetIn: resetIn}, nil
	}
	return Result{Allowed: true, Remaining: p.MaxRequests - count, ResetIn: resetIn}, nil
}

// Ping verifies the connection, with a bounded wait.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}
