package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wonny/trustrank/internal/contracts"
)

// 토큰이 일치할 때만 삭제/연장 (다른 holder 의 락을 건드리지 않음)
var (
	releaseScript = redis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		end
		return 0
	`)

	extendScript = redis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Locker implements contracts.Locker with SET NX PX.
// Redis 비활성 시 프로세스 내부 락으로 동작 (단일 인스턴스 전용)
// ⭐ SSOT: 분산 락은 여기서만
type Locker struct {
	client *Client

	mu    sync.Mutex
	local map[string]localLease
	now   func() time.Time
}

type localLease struct {
	token     string
	expiresAt time.Time
}

// NewLocker creates a new distributed locker
func NewLocker(client *Client) *Locker {
	return &Locker{
		client: client,
		local:  make(map[string]localLease),
		now:    time.Now,
	}
}

// LockKey returns the redis key of a named lock
func (l *Locker) LockKey(name string) string {
	return l.client.Key("lock", name)
}

// Acquire takes the lock without blocking
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	if !l.client.Enabled() {
		return token, l.acquireLocal(name, token, ttl)
	}

	ok, err := l.client.Redis().SetNX(ctx, l.LockKey(name), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", contracts.ErrLockHeld
	}
	return token, nil
}

// Extend refreshes the TTL while the token still owns the lock
func (l *Locker) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	if !l.client.Enabled() {
		return l.extendLocal(name, token, ttl)
	}

	n, err := extendScript.Run(ctx, l.client.Redis(), []string{l.LockKey(name)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return contracts.ErrLockLost
	}
	return nil
}

// Release deletes the lock if the token still owns it. Releasing a lost lock is not an error.
func (l *Locker) Release(ctx context.Context, name, token string) error {
	if !l.client.Enabled() {
		l.releaseLocal(name, token)
		return nil
	}

	if err := releaseScript.Run(ctx, l.client.Redis(), []string{l.LockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

func (l *Locker) acquireLocal(name, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.local[name]; ok && now.Before(cur.expiresAt) {
		return contracts.ErrLockHeld
	}
	l.local[name] = localLease{token: token, expiresAt: now.Add(ttl)}
	return nil
}

func (l *Locker) extendLocal(name, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cur, ok := l.local[name]
	if !ok || cur.token != token || !now.Before(cur.expiresAt) {
		return contracts.ErrLockLost
	}
	l.local[name] = localLease{token: token, expiresAt: now.Add(ttl)}
	return nil
}

func (l *Locker) releaseLocal(name, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.local[name]; ok && cur.token == token {
		delete(l.local, name)
	}
}
