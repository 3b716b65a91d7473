package classify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown is the minimum spacing between classification attempts for one
// session. The check is a soft throttle: racing duplicates waste a classifier
// call but never corrupt data.
const Cooldown = 30 * time.Second

// Limiter answers whether a session may attempt classification right now.
type Limiter interface {
	Allow(ctx context.Context, sessionID string) (bool, error)
}

// RedisLimiter throttles across instances with SetNX + TTL.
type RedisLimiter struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, cooldown: Cooldown}
}

func (l *RedisLimiter) Allow(ctx context.Context, sessionID string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, "classify:cooldown:"+sessionID, 1, l.cooldown).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// MemoryLimiter is the single-instance fallback when Redis is not configured,
// and the limiter used in tests.
type MemoryLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		last:     make(map[string]time.Time),
		cooldown: Cooldown,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[sessionID]; ok && now.Sub(last) < l.cooldown {
		return false, nil
	}
	l.last[sessionID] = now
	return true, nil
}
