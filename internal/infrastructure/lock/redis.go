// Package lock provides a KeyedLocker shared across processes through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL        = time.Minute
	defaultRetryDelay = 50 * time.Millisecond
	releaseTimeout    = 3 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements a per-key mutex with SET NX PX. A holder that dies
// loses the lock after TTL, so TTL must exceed the longest critical section.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithTTL sets the lock expiry.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryDelay sets the wait between acquisition attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// WithPrefix namespaces the lock keys.
func WithPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// NewRedisLocker connects to redisURL and verifies the connection.
func NewRedisLocker(ctx context.Context, redisURL string, opts ...Option) (*RedisLocker, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisLockerWithClient(client, opts...), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(client *redis.Client, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client:     client,
		prefix:     "shopfloor:lock:",
		ttl:        defaultTTL,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock polls until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return sync.OnceFunc(func() { l.release(redisKey, token) }), nil
		}
		timer.Reset(l.retryDelay)
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to release lock", "key", redisKey, "error", err)
	}
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
