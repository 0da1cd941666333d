package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryBucket struct {
	window time.Duration
	stamps []time.Time
}

// prune drops timestamps that have left the window ending at now.
func (b *memoryBucket) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	idx := 0
	for idx < len(b.stamps) && !b.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.stamps = b.stamps[idx:]
	}
}

func (b *memoryBucket) resetIn(now time.Time) time.Duration {
	if len(b.stamps) == 0 {
		return b.window
	}
	remaining := b.window - now.Sub(b.stamps[0])
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MemoryLimiter implements a sliding-window in-memory rate limiter. Each
// (user, class) pair keeps an ordered list of request timestamps.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*memoryBucket),
	}
}

func bucketKey(userID string, class Class) string {
	return userID + ":" + string(class)
}

// Check consumes one slot if the budget allows and reports the outcome.
func (l *MemoryLimiter) Check(_ context.Context, userID string, class Class, limit Limit, now time.Time) (Result, error) {
	if limit.Max <= 0 || userID == "" {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey(userID, class)
	bucket := l.buckets[key]
	if bucket == nil {
		bucket = &memoryBucket{window: limit.Window}
		l.buckets[key] = bucket
	}
	bucket.window = limit.Window
	bucket.prune(now)

	if len(bucket.stamps) >= limit.Max {
		return Result{
			Allowed:   false,
			Remaining: 0,
			Limit:     limit.Max,
			ResetIn:   bucket.resetIn(now),
		}, nil
	}

	bucket.stamps = append(bucket.stamps, now)
	return Result{
		Allowed:   true,
		Remaining: limit.Max - len(bucket.stamps),
		Limit:     limit.Max,
		ResetIn:   bucket.resetIn(now),
	}, nil
}

// Peek reports the current budget without consuming a slot.
func (l *MemoryLimiter) Peek(userID string, class Class, limit Limit, now time.Time) Result {
	if limit.Max <= 0 || userID == "" {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.buckets[bucketKey(userID, class)]
	if bucket == nil {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max, ResetIn: limit.Window}
	}
	bucket.prune(now)
	remaining := limit.Max - len(bucket.stamps)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   remaining > 0,
		Remaining: remaining,
		Limit:     limit.Max,
		ResetIn:   bucket.resetIn(now),
	}
}

// Reset clears one (user, class) bucket.
func (l *MemoryLimiter) Reset(userID string, class Class) {
	l.mu.Lock()
	delete(l.buckets, bucketKey(userID, class))
	l.mu.Unlock()
}

// ResetAll clears every class bucket for a user.
func (l *MemoryLimiter) ResetAll(userID string) {
	prefix := userID + ":"
	l.mu.Lock()
	for key := range l.buckets {
		if strings.HasPrefix(key, prefix) {
			delete(l.buckets, key)
		}
	}
	l.mu.Unlock()
}

// Sweep prunes every bucket and evicts the empty ones. Intended to run
// periodically so abandoned users do not hold memory.
func (l *MemoryLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	for key, bucket := range l.buckets {
		bucket.prune(now)
		if len(bucket.stamps) == 0 {
			delete(l.buckets, key)
		}
	}
	l.mu.Unlock()
}

// Len reports the number of live buckets. Used by tests and the sweeper log.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
