package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 슬라이딩 윈도우: 윈도우 밖 항목 제거 후 개수 비교
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // namespace, e.g. "recompute_one"
	Limit  int           // maximum requests per window
	Window time.Duration // window length
}

// RecomputeOneRateLimit admin-triggered single company recompute: 5 per minute per company
var RecomputeOneRateLimit = RateLimitConfig{
	Key:    "recompute_one",
	Limit:  5,
	Window: time.Minute,
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow checks if a request for subject is allowed under the limit.
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig, subject string) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := r.client.Key("ratelimit", cfg.Key, subject)
	now := time.Now()
	windowStart := now.Add(-cfg.Window).UnixMilli()

	result, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{key},
		now.UnixMilli(),
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
		now.UnixNano(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	return result[0] == 1, int(result[1]), nil
}
