package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 25 * time.Millisecond
	maxLockRetry     = 500 * time.Millisecond
	lockKeyPrefix    = "obe:lock:"
)

// Only the token that acquired the lease may release it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a lease-based key lock shared by every process pointed at the
// same Redis. A lease expires after TTL if its holder dies.
type Locker struct {
	rdb   *goredis.Client
	log   *logger.Logger
	ttl   time.Duration
	retry time.Duration
}

type LockerOption func(*Locker)

func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithLockRetry(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

func NewLocker(rdb *goredis.Client, baseLog *logger.Logger, opts ...LockerOption) *Locker {
	l := &Locker{
		rdb:   rdb,
		log:   baseLog.With("service", "RedisLocker"),
		ttl:   defaultLockTTL,
		retry: defaultLockRetry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis locker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()
	wait := l.retry

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		if wait *= 2; wait > maxLockRetry {
			wait = maxLockRetry
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be canceled; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
				l.log.Warn("redis unlock failed", "key", key, "error", err)
			}
		})
	}, nil
}
