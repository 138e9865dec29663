package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Redis-backed sliding window rate limiting, letting
// several API instances share one limit.
type RedisLimiter struct {
	client *redis.Client
	limit  Limit
	script *redis.Script
}

// Sliding window over a sorted set: trim old entries, count, and add the new
// request only when under the limit. Runs atomically server-side.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= max then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, count, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisLimiter creates a new Redis-backed rate limiter
func NewRedisLimiter(opts RedisOptions, limit Limit) (*RedisLimiter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLimiter{client: rdb, limit: limit, script: slidingWindowScript}, nil
}

// Check performs a rate limit check for the key.
func (rl *RedisLimiter) Check(ctx context.Context, key string) (*Result, error) {
	now := time.Now().UnixMilli()
	windowMs := rl.limit.Window.Milliseconds()

	raw, err := rl.script.Run(ctx, rl.client, []string{"ratelimit:" + key},
		now, windowMs, rl.limit.max()).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", raw)
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	oldest, _ := values[2].(int64)

	result := &Result{
		Allowed: allowed == 1,
		Count:   int(count),
		Limit:   rl.limit.max(),
	}
	if result.Allowed {
		result.Remaining = rl.limit.max() - int(count)
	} else if oldest > 0 {
		result.RetryAfter = time.Duration(oldest+windowMs-now) * time.Millisecond
		if result.RetryAfter < 0 {
			result.RetryAfter = 0
		}
	}
	return result, nil
}

// Close closes the Redis connection.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}
