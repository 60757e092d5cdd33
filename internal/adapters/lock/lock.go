// Package lock provides a Redis-backed mutual exclusion lock shared by replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/runclub/pkg/logger"
)

const (
	defaultTTL     = 5 * time.Minute
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Connect returns a client for addr, or nil when addr is empty.
func Connect(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

// RedisLocker acquires keys with SET NX PX and releases them with a
// compare-and-delete script. A crashed holder frees the key after the TTL.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

// Option applies a configuration option to the RedisLocker.
type Option func(*RedisLocker)

// WithTTL sets how long an unreleased lock survives.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *RedisLocker) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.Cmdable, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: client,
		ttl:    defaultTTL,
		logger: logger.Get().Named("lock"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock attempts to take key without waiting.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn(ctx, "lock release failed", logger.String("key", key), logger.Error(err))
		}
	}
	return unlock, true, nil
}
