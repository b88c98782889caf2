package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"verigate/internal/ratelimit/models"
)

const keyPrefix = "ratelimit:"

// slidingWindowScript trims the window, then admits cost entries if they fit.
// Returns {allowed, remaining, resetAtMillis}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count + cost > limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset = now + window
	if oldest[2] then
		reset = tonumber(oldest[2]) + window
	end
	return {0, 0, reset}
end

for i = 1, cost do
	redis.call('ZADD', key, now, member .. ':' .. i)
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, limit - count - cost, tonumber(oldest[2]) + window}
`)

// RedisStore keeps sliding windows as sorted sets scored by unix milliseconds,
// shared by every replica.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedis constructs a Redis-backed window store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// AllowN consumes cost slots from key's window when the budget allows it.
func (s *RedisStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	raw, err := slidingWindowScript.Run(ctx, s.client, []string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply of length %d", len(raw))
	}

	resetAt := time.UnixMilli(raw[2]).UTC()
	res := &models.Result{
		Allowed:   raw[0] == 1,
		Limit:     limit,
		Remaining: int(raw[1]),
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = retryAfterSeconds(resetAt, now)
	}
	return res, nil
}
