package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
// KEYS[1] = lock key
// ARGV[1] = owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockTimeout is returned when the lock could not be taken before ctx ended.
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// RedisLocker is a Locker shared by every API replica pointed at the same Redis.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisLocker creates a locker backed by Redis.
func NewRedisLocker(addr string, password string, db int) *RedisLocker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLocker{
		client: rdb,
		ttl:    30 * time.Second,
		retry:  25 * time.Millisecond,
		prefix: "installment:lock:",
	}
}

// Ping checks connectivity.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Lock polls SET NX PX until it wins or ctx is done. The lock expires after
// the TTL if the holder dies.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := l.prefix + key

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock error: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}

	return l.unlocker(ctx, redisKey, token), nil
}

func (l *RedisLocker) unlocker(ctx context.Context, redisKey, token string) func() {
	return func() {
		if err := l.release(redisKey, token); err != nil {
			logger.Warn(ctx, "failed to release redis lock", "key", redisKey, "error", err)
		}
	}
}

// release runs with a fresh context so a cancelled request still frees the key.
// On failure the key is held until its TTL expires.
func (l *RedisLocker) release(redisKey, token string) error {
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
