package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenDenies(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         3,
		WaitTimeout:       time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.TryAllow(), "burst request %d should pass", i)
	}
	assert.False(t, rl.TryAllow())
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 100,
		BurstSize:         1,
		WaitTimeout:       time.Second,
	})

	require.True(t, rl.TryAllow())
	require.False(t, rl.TryAllow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.TryAllow())
}

func TestRateLimiter_AllowBlocksUntilToken(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 50,
		BurstSize:         1,
		WaitTimeout:       2 * time.Second,
	})

	require.NoError(t, rl.Allow(context.Background()))

	start := time.Now()
	require.NoError(t, rl.Allow(context.Background()))
	assert.Greater(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_AllowHonorsContextCancel(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		WaitTimeout:       time.Hour,
	})
	require.True(t, rl.TryAllow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Allow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_RecordRateLimitHitDrainsBucket(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	require.True(t, rl.TryAllow())

	rl.RecordRateLimitHit(30 * time.Second)

	status := rl.Status()
	assert.Less(t, status.AvailableTokens, 1.0)
	assert.Less(t, status.RefillRate, 30.0)
	assert.False(t, rl.TryAllow())
}

func TestRateLimiter_ResetRestoresBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
		WaitTimeout:       time.Millisecond,
	})
	require.True(t, rl.TryAllow())
	require.True(t, rl.TryAllow())
	require.False(t, rl.TryAllow())

	rl.Reset()
	assert.True(t, rl.TryAllow())
}

func TestRateLimitError_Is(t *testing.T) {
	err := &RateLimitError{Message: "slow down"}
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}
