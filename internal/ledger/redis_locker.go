package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ebank-backoffice/internal/logger"
	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

// releaseScript deletes the lock only while it still carries our token, so
// a lease that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker serialises account mutators across several server instances
// with one SET NX PX lease per account id. The lease TTL bounds how long a
// crashed holder can block an account.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock:account"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: 25 * time.Millisecond}
}

type lease struct {
	key   string
	token string
}

// Lock acquires the leases in lexicographic id order. Failing to reach
// Redis is reported as repository.ErrStoreUnavailable.
func (l *RedisLocker) Lock(ctx context.Context, ids ...string) (func(), error) {
	keys := lockOrder(ids)
	held := make([]lease, 0, len(keys))
	for _, id := range keys {
		ls, err := l.acquire(ctx, l.prefix+":"+id)
		if err != nil {
			l.release(held)
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		held = append(held, ls)
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key string) (lease, error) {
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return lease{}, ctx.Err()
			}
			return lease{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
		}
		if ok {
			return lease{key: key, token: token}, nil
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return lease{}, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *RedisLocker) release(held []lease) {
	// Release even when the caller's context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.rdb, []string{held[i].key}, held[i].token).Err(); err != nil {
			logger.Warn("redis lock release failed", logger.Fields{"key": held[i].key, "error": err.Error()})
		}
	}
}
