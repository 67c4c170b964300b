package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xbrldata/keygate/internal/storage"
)

// takeScript refills and consumes in a single atomic round trip. State
// lives in a hash: tokens (float) and ts (last refill, unix seconds).
// A negative cost refunds tokens. Returns {allowed, tokens}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * refill)
  ts = now
end

local allowed = 0
if cost <= 0 then
  tokens = math.min(capacity, tokens - cost)
  allowed = 1
elseif tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', key, ttl)
return {allowed, tostring(tokens)}
`)

// RedisStore keeps bucket state in Redis so limits hold across
// processes. All mutation goes through takeScript.
type RedisStore struct {
	redis *storage.RedisClient
	now   func() time.Time
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{
		redis: redis,
		now:   time.Now,
	}
}

func (s *RedisStore) Take(ctx context.Context, key string, capacity int, refillPerSec float64, cost int) (bool, float64, time.Duration, error) {
	redisKey := fmt.Sprintf("ratelimit:bucket:%s", key)
	now := float64(s.now().UnixMicro()) / 1e6

	// Keep state around long enough for the slowest bucket to refill
	// fully, then let it expire.
	ttl := int(math.Ceil(float64(capacity)/refillPerSec)) * 2
	if ttl < 60 {
		ttl = 60
	}

	res, err := takeScript.Run(ctx, s.redis.Client(),
		[]string{redisKey},
		capacity, refillPerSec, now, cost, ttl,
	).Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	allowed, _ := res[0].(int64)
	tokensStr, _ := res[1].(string)
	tokens, _ := strconv.ParseFloat(tokensStr, 64)

	if allowed == 1 {
		return true, tokens, 0, nil
	}

	return false, tokens, waitFor(tokens, float64(cost), refillPerSec), nil
}

func (s *RedisStore) Give(ctx context.Context, key string, capacity int, refillPerSec float64, cost int) error {
	_, _, _, err := s.Take(ctx, key, capacity, refillPerSec, -cost)
	return err
}

// waitFor computes how long until the bucket accumulates enough tokens
// to cover cost.
func waitFor(tokens, cost, refillPerSec float64) time.Duration {
	missing := cost - tokens
	if missing <= 0 {
		return 0
	}
	secs := missing / refillPerSec
	return time.Duration(math.Ceil(secs*1000)) * time.Millisecond
}
