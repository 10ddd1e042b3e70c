package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// renewScript extends the key's TTL only if it still holds our token.
const renewScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// RedisLocker is a RunLocker shared by every instance talking to the same Redis.
// A held lock is renewed every renewEvery until it is released, so a
// calculation that outlives ttl keeps its run locked.
type RedisLocker struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	renewEvery time.Duration
	retryDelay time.Duration
	newToken   func() string
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		prefix:     "payroll:run-lock:",
		ttl:        ttl,
		renewEvery: ttl / 3,
		retryDelay: 100 * time.Millisecond,
		newToken:   uuid.NewString,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := l.newToken()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// Release must run even if the caller's context is already done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err(); err != nil {
				slog.Warn("failed to release run lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	if l.renewEvery <= 0 {
		return
	}

	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.renewEvery)
			held, err := l.renew(ctx, redisKey, token)
			cancel()
			switch {
			case err != nil:
				slog.Warn("failed to renew run lock", "key", redisKey, "error", err)
			case !held:
				slog.Warn("run lock lost before release", "key", redisKey)
				return
			}
		}
	}
}

// renew pushes the key's expiry out by ttl. It reports false once another
// holder owns the key or it has expired.
func (l *RedisLocker) renew(ctx context.Context, redisKey, token string) (bool, error) {
	n, err := l.client.Eval(ctx, renewScript, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to renew lock %s: %w", redisKey, err)
	}
	return n == 1, nil
}
