// File: internal/infra/redis/rate_limiter.go
package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter shared by every process using the same Redis.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// AICallsKey buckets AI calls per provider and minute.
func AICallsKey(provider string, now time.Time) string {
	return fmt.Sprintf("rate_limit:ai:%s:%d", provider, now.Unix()/60)
}

// SyncLockKey guards sync scheduling for one requisition.
func SyncLockKey(requisitionID string) string {
	return fmt.Sprintf("lock:sync:%s", requisitionID)
}
