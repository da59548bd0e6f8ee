package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const redisRateKeyPrefix = "promanage:ratelimit:"

// slidingWindowScript keeps one sorted set per key scored by admission time in
// milliseconds. Pruning, counting and admitting run as one script so
// concurrent API instances cannot both take the last slot.
//
// KEYS[1] set key; ARGV: now ms, window ms, limit, member.
// Returns {allowed, count, reset ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', tostring(now - window))
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, ARGV[2])

local reset = now + window
local oldest = redis.call('ZRANGE', key, '0', '0', 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

type redisRateLimiter struct {
	client  *redis.Client
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewRedisRateLimiter constructs a limiter shared by every API instance
// pointing at the same server.
func NewRedisRateLimiter(ctx context.Context, addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return newRedisRateLimiter(client, logger, time.Now), nil
}

func newRedisRateLimiter(client *redis.Client, logger *slog.Logger, now func() time.Time) *redisRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisRateLimiter{client: client, logger: logger, now: now, timeout: 250 * time.Millisecond}
}

// Allow fails open: when redis is unreachable the request is admitted.
func (l *redisRateLimiter) Allow(ctx context.Context, key string, rule rateRule) rateDecision {
	if rule.limit <= 0 {
		return rateDecision{allowed: true}
	}
	window := rule.windowOrDefault()
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := slidingWindowScript.Run(ctx, l.client, []string{redisRateKeyPrefix + key},
		strconv.FormatInt(l.now().UnixMilli(), 10),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.Itoa(rule.limit),
		uuid.NewString(),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		if err == nil {
			err = fmt.Errorf("unexpected script reply %v", res)
		}
		l.logger.ErrorContext(ctx, "redis rate limiter unavailable, admitting request", "rule", rule.name, "error", err)
		return rateDecision{allowed: true}
	}
	return rateDecision{
		allowed: res[0] == 1,
		count:   int(res[1]),
		resetAt: time.UnixMilli(res[2]),
	}
}

func (l *redisRateLimiter) Close() {
	_ = l.client.Close()
}
