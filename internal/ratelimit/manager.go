package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisConfig describes the optional shared limiter backend.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager resolves per-class limits and enforces them on the best available
// backend: Redis when configured and healthy, the in-memory sliding window
// otherwise.
type Manager struct {
	limits map[Class]Limit
	nowFn  func() time.Time

	memoryLimiter  *MemoryLimiter
	newRedisClient RedisClientFactory
	redisConfig    RedisConfig

	mu           sync.Mutex
	redisLimiter *RedisLimiter
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
// Classes missing from limits fall back to DefaultLimits.
func NewManager(limits map[Class]Limit, redisConfig RedisConfig, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	merged := DefaultLimits()
	for class, limit := range limits {
		merged[class] = limit
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		limits:         merged,
		nowFn:          nowFn,
		memoryLimiter:  NewMemoryLimiter(),
		newRedisClient: newRedisClient,
		redisConfig:    redisConfig,
	}
}

// LimitFor returns the configured limit for a class.
func (m *Manager) LimitFor(class Class) Limit {
	if m == nil {
		return Limit{}
	}
	return m.limits[class]
}

// Check consumes one slot for (userID, class). A non-nil override replaces
// the configured limit for this call only.
func (m *Manager) Check(ctx context.Context, userID string, class Class, override *Limit) Result {
	if m == nil {
		return Result{Allowed: true}
	}
	limit := m.limits[class]
	if override != nil {
		limit = *override
	}
	if limit.Max <= 0 || userID == "" {
		return Result{Allowed: true, Remaining: limit.Max, Limit: limit.Max}
	}
	now := m.nowFn()

	if m.redisConfig.Enabled {
		if result, ok := m.checkRedis(ctx, userID, class, limit, now); ok {
			return result
		}
	}
	result, _ := m.memoryLimiter.Check(ctx, userID, class, limit, now)
	return result
}

// Peek reports the current budget for (userID, class) without consuming.
func (m *Manager) Peek(ctx context.Context, userID string, class Class) Result {
	if m == nil {
		return Result{Allowed: true}
	}
	limit := m.limits[class]
	now := m.nowFn()

	if m.redisConfig.Enabled && !m.isBreakerActive(now) {
		limiter, errEnsure := m.ensureRedis(ctx, now)
		if errEnsure != nil {
			m.tripBreaker(errEnsure, now)
		} else if limiter != nil {
			result, errPeek := limiter.Peek(ctx, userID, class, limit, now)
			if errPeek == nil {
				return result
			}
			m.tripBreaker(errPeek, now)
		}
	}
	return m.memoryLimiter.Peek(userID, class, limit, now)
}

// Reset clears one (user, class) bucket on every backend.
func (m *Manager) Reset(ctx context.Context, userID string, class Class) {
	if m == nil {
		return
	}
	m.memoryLimiter.Reset(userID, class)
	if !m.redisConfig.Enabled {
		return
	}
	now := m.nowFn()
	if limiter, errEnsure := m.ensureRedis(ctx, now); errEnsure == nil && limiter != nil {
		if errReset := limiter.Reset(ctx, userID, class, m.limits[class], now); errReset != nil {
			m.tripBreaker(errReset, now)
		}
	}
}

// ResetAll clears every class bucket for a user on every backend.
func (m *Manager) ResetAll(ctx context.Context, userID string) {
	if m == nil {
		return
	}
	m.memoryLimiter.ResetAll(userID)
	if !m.redisConfig.Enabled {
		return
	}
	for class := range m.limits {
		m.Reset(ctx, userID, class)
	}
}

// StartSweeper prunes empty memory buckets every interval until ctx ends.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if m == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.memoryLimiter.Sweep(m.nowFn())
			}
		}
	}()
}

func (m *Manager) checkRedis(ctx context.Context, userID string, class Class, limit Limit, now time.Time) (Result, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.isBreakerActive(now) {
		return Result{}, false
	}
	limiter, errEnsure := m.ensureRedis(ctx, now)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return Result{}, false
	}
	if limiter == nil {
		return Result{}, false
	}
	result, errCheck := limiter.Check(ctx, userID, class, limit, now)
	if errCheck != nil {
		m.tripBreaker(errCheck, now)
		return Result{}, false
	}
	return result, true
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, now time.Time) (*RedisLimiter, error) {
	addr := strings.TrimSpace(m.redisConfig.Addr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil {
		return m.redisLimiter, nil
	}

	db := m.redisConfig.DB
	if db < 0 {
		db = 0
	}
	client := m.newRedisClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(m.redisConfig.Password),
		DB:       db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisLimiter(client, m.redisConfig.Prefix)
	return m.redisLimiter, nil
}
