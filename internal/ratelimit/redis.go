package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements an approximate fixed-window rate limiter backed by
// Redis. Windows are aligned to multiples of the class window length, which
// is coarser than the in-memory sliding window but shared across instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Check consumes one slot in the current window bucket.
func (l *RedisLimiter) Check(ctx context.Context, userID string, class Class, limit Limit, now time.Time) (Result, error) {
	if limit.Max <= 0 || userID == "" || l == nil || l.client == nil {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max}, nil
	}
	windowSec := windowSeconds(limit.Window)
	bucket := now.Unix() / windowSec
	resetIn := time.Duration((bucket+1)*windowSec-now.Unix()) * time.Second

	redisKey := l.buildKey(userID, class, bucket)
	// TTL one window past the bucket end so laggards still observe the count.
	res, errEval := redisIncrScript.Run(ctx, l.client, []string{redisKey}, windowSec*2).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, errCount := asInt64(res)
	if errCount != nil {
		return Result{}, errCount
	}
	if count > int64(limit.Max) {
		return Result{Allowed: false, Remaining: 0, Limit: limit.Max, ResetIn: resetIn}, nil
	}
	remaining := limit.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, Limit: limit.Max, ResetIn: resetIn}, nil
}

// Peek reads the current window bucket without consuming a slot.
func (l *RedisLimiter) Peek(ctx context.Context, userID string, class Class, limit Limit, now time.Time) (Result, error) {
	if limit.Max <= 0 || userID == "" || l == nil || l.client == nil {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max}, nil
	}
	windowSec := windowSeconds(limit.Window)
	bucket := now.Unix() / windowSec
	resetIn := time.Duration((bucket+1)*windowSec-now.Unix()) * time.Second

	raw, errGet := l.client.Get(ctx, l.buildKey(userID, class, bucket)).Result()
	if errors.Is(errGet, redis.Nil) {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max, ResetIn: resetIn}, nil
	}
	if errGet != nil {
		return Result{}, errGet
	}
	count, errParse := strconv.ParseInt(raw, 10, 64)
	if errParse != nil {
		return Result{}, errParse
	}
	remaining := limit.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: remaining > 0, Remaining: remaining, Limit: limit.Max, ResetIn: resetIn}, nil
}

// Reset deletes the current window bucket for one (user, class).
func (l *RedisLimiter) Reset(ctx context.Context, userID string, class Class, limit Limit, now time.Time) error {
	if userID == "" || l == nil || l.client == nil {
		return nil
	}
	windowSec := windowSeconds(limit.Window)
	bucket := now.Unix() / windowSec
	return l.client.Del(ctx, l.buildKey(userID, class, bucket)).Err()
}

func (l *RedisLimiter) buildKey(userID string, class Class, bucket int64) string {
	key := userID + ":" + string(class) + ":" + strconv.FormatInt(bucket, 10)
	prefix := strings.TrimSpace(l.prefix)
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

func windowSeconds(window time.Duration) int64 {
	sec := int64(window / time.Second)
	if sec < 1 {
		sec = 1
	}
	return sec
}

func asInt64(res any) (int64, error) {
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, errors.New("rate limit redis: unexpected response type")
	}
}
