package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trustrank/internal/contracts"
	"github.com/wonny/trustrank/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false, KeyPrefix: "test"}})
	require.NoError(t, err)
	require.False(t, client.Enabled())
	return client
}

func integrationClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" || testing.Short() {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	client, err := New(&config.Config{Redis: config.RedisConfig{
		Host:      host,
		Port:      port,
		Enabled:   true,
		KeyPrefix: "trustrank-test-" + time.Now().Format("150405.000000"),
	}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestKeys(t *testing.T) {
	client := disabledClient(t)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"lock", NewLocker(client).LockKey("score:recompute"), "test:lock:score:recompute"},
		{"cursor", NewJobState(client).JobKey("score_recompute", "cursor"), "test:job:score_recompute:cursor"},
		{"stats", NewJobState(client).JobKey("score_recompute", "last_run_stats"), "test:job:score_recompute:last_run_stats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestLocker_LocalFallback(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(disabledClient(t))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	token, err := locker.Acquire(ctx, "score:recompute", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = locker.Acquire(ctx, "score:recompute", time.Minute)
	assert.ErrorIs(t, err, contracts.ErrLockHeld)

	assert.NoError(t, locker.Extend(ctx, "score:recompute", token, time.Minute))
	assert.ErrorIs(t, locker.Extend(ctx, "score:recompute", "other", time.Minute), contracts.ErrLockLost)

	// wrong token must not release
	require.NoError(t, locker.Release(ctx, "score:recompute", "other"))
	_, err = locker.Acquire(ctx, "score:recompute", time.Minute)
	assert.ErrorIs(t, err, contracts.ErrLockHeld)

	require.NoError(t, locker.Release(ctx, "score:recompute", token))
	_, err = locker.Acquire(ctx, "score:recompute", time.Minute)
	assert.NoError(t, err)
}

func TestLocker_LocalTTLExpiry(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(disabledClient(t))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	_, err := locker.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)

	// crashed holder: TTL is the backstop
	now = now.Add(2 * time.Minute)
	_, err = locker.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
}

func TestJobState_Disabled(t *testing.T) {
	ctx := context.Background()
	store := NewJobState(disabledClient(t))

	require.NoError(t, store.SetCursor(ctx, "job", "c-100"))
	cursor, err := store.GetCursor(ctx, "job")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	last, err := store.LastRun(ctx, "job")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t))

	allowed, remaining, err := limiter.Allow(context.Background(), RecomputeOneRateLimit, "c-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, RecomputeOneRateLimit.Limit, remaining)
}

func TestLocker_Redis(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()
	locker := NewLocker(client)

	token, err := locker.Acquire(ctx, "it", 5*time.Second)
	require.NoError(t, err)
	defer locker.Release(ctx, "it", token)

	_, err = locker.Acquire(ctx, "it", 5*time.Second)
	assert.ErrorIs(t, err, contracts.ErrLockHeld)
	assert.NoError(t, locker.Extend(ctx, "it", token, 5*time.Second))
	assert.ErrorIs(t, locker.Extend(ctx, "it", "stranger", time.Second), contracts.ErrLockLost)
}

func TestJobState_Redis(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()
	store := NewJobState(client)

	require.NoError(t, store.SetCursor(ctx, "job", "c-200"))
	cursor, err := store.GetCursor(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, "c-200", cursor)

	require.NoError(t, store.ClearCursor(ctx, "job"))
	cursor, err = store.GetCursor(ctx, "job")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	run := &contracts.RunResult{RunID: "r1", Status: contracts.RunCompleted, Processed: 450, Errors: 1, FinishedAt: time.Now()}
	require.NoError(t, store.SaveLastRun(ctx, "job", run))

	last, err := store.LastRun(ctx, "job")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 450, last.Processed)
	assert.Equal(t, contracts.RunCompleted, last.Status)
}
