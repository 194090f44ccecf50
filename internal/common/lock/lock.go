// Package lock serialises work on one application across manager replicas.
package lock

import (
	"context"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker acquires a named lock. The returned release func is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// ApplicationKey is the lock name for one application.
func ApplicationKey(applicationID string) string {
	return "pipeline:lock:application:" + applicationID
}

// Noop never blocks. Row versions still reject stale writers.
type Noop struct{}

func (Noop) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	retry    time.Duration
	logger   logger.Logger
	newToken func() string
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log logger.Logger) *RedisLocker {
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		retry:    50 * time.Millisecond,
		logger:   log.WithFields(map[string]interface{}{"component": "redis-lock"}),
		newToken: func() string { return uuid.New().String() },
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := l.newToken()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.NewExternalServiceError("redis", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errors.NewLockUnavailableError(key)
		}

		select {
		case <-ctx.Done():
			return nil, errors.NewTimeoutError("redis lock", ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.Warn("Failed to release lock", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
}
