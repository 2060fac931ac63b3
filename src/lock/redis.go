package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// RedisLock implements DistributedLock with SET NX and token-checked
// scripts, so a process only ever releases or extends its own lease.
type RedisLock struct {
	client redis.UniversalClient
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLock(client redis.UniversalClient, prefix string) *RedisLock {
	return &RedisLock{
		client: client,
		prefix: prefix,
		tokens: make(map[string]string),
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := newToken()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if ok {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}
	return ok, nil
}

func (r *RedisLock) token(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[key]
	return t, ok
}

func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	token, ok := r.token(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	r.mu.Lock()
	delete(r.tokens, key)
	r.mu.Unlock()

	n, err := unlockScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	return nil
}

func (r *RedisLock) Extend(ctx context.Context, key string, ttl time.Duration) error {
	token, ok := r.token(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	n, err := extendScript.Run(ctx, r.client, []string{r.prefix + key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis extend %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	return nil
}

func (r *RedisLock) Close() error {
	return r.client.Close()
}
