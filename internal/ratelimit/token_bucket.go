package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// actionBucketScript refills at ARGV[1] tokens/s up to ARGV[2] and spends one
// token per call. It returns {allowed, whole tokens left, retry after ms}.
const actionBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + (elapsed / 1000) * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), retry}
`

// RateLimitResult is the outcome of spending one action token.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// actionBucket is a per-account token bucket kept in Redis and timed by the
// Redis server clock, so every replica shares one bucket per account.
type actionBucket struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
	ttl    time.Duration
}

func newActionBucket(client *redis.Client, perMinute float64, burst int) (*actionBucket, error) {
	if client == nil {
		return nil, errors.New("action bucket redis client is nil")
	}
	rate := perMinute / 60
	if rate <= 0 || burst <= 0 {
		return nil, errors.New("action rate limit must be positive")
	}
	return &actionBucket{
		client: client,
		script: redis.NewScript(actionBucketScript),
		rate:   rate,
		burst:  burst,
		ttl:    bucketTTL(rate, burst),
	}, nil
}

func (b *actionBucket) key(accountID string) string {
	return fmt.Sprintf(keyActionAccount, strings.TrimSpace(accountID))
}

// take spends one token for accountID.
func (b *actionBucket) take(ctx context.Context, accountID string) (*RateLimitResult, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errors.New("action bucket account id is empty")
	}

	res, err := b.script.Run(ctx, b.client, []string{b.key(accountID)},
		b.rate, b.burst, b.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("action bucket script returned %d values", len(res))
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Limit:      b.burst,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
