package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// RateLimiter enforces a fixed-window request ceiling per key. Counters
// live in Redis so every instance behind a load balancer shares the
// budget.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}

	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: time.Minute,
	}
}

// Allow reports whether the caller identified by key still has budget in
// the current window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	counterKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if count == 1 {
		l.redis.Expire(ctx, counterKey, l.window)
	}

	return count <= int64(l.limit), nil
}

// VerifyAPIKey compares a presented admin key against the configured
// bcrypt hash. Unset hashes never match, so admin routes stay closed
// until a key is provisioned.
func VerifyAPIKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
