package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xbrldata/keygate/internal/models"
)

func TestTieredMinuteWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTiered(NewMemoryStore(clock.Now))
	ctx := context.Background()

	limits := models.RateLimits{PerMinute: 60, PerHour: 3000, PerDay: 30000}

	// A burst of 60 requests within one simulated second all passes.
	for i := 0; i < 60; i++ {
		decision, err := limiter.Consume(ctx, "cred-1", limits, 1)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d should be allowed", i+1)
	}

	// The 61st inside the same window is rejected with a retry hint.
	decision, err := limiter.Consume(ctx, "cred-1", limits, 1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))

	// After a full minute the bucket has refilled.
	clock.Advance(time.Minute)
	decision, err = limiter.Consume(ctx, "cred-1", limits, 1)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestTieredHourWindowBlocksIndependently(t *testing.T) {
	clock := newFakeClock()
	limiter := NewTiered(NewMemoryStore(clock.Now))
	ctx := context.Background()

	// Generous minute allowance, tiny hour allowance.
	limits := models.RateLimits{PerMinute: 1000, PerHour: 2, PerDay: 30000}

	for i := 0; i < 2; i++ {
		decision, err := limiter.Consume(ctx, "cred-1", limits, 1)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := limiter.Consume(ctx, "cred-1", limits, 1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "hour bucket must block even with minute capacity left")
}

func TestTieredRejectionRefundsEarlierWindows(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	limiter := NewTiered(store)
	ctx := context.Background()

	limits := models.RateLimits{PerMinute: 10, PerHour: 1, PerDay: 30000}

	decision, err := limiter.Consume(ctx, "cred-1", limits, 1)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// Hour bucket is now empty; the next attempt is rejected but must
	// not burn minute tokens.
	for i := 0; i < 5; i++ {
		decision, err = limiter.Consume(ctx, "cred-1", limits, 1)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
	}

	_, remaining, _, err := store.Take(ctx, "cred-1:minute", 10, 10.0/60, 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, remaining, "rejected requests must not consume minute tokens")
}

func TestTieredZeroWindowsAreUnlimited(t *testing.T) {
	limiter := NewTiered(NewMemoryStore(nil))
	ctx := context.Background()

	// Only the minute window is configured.
	limits := models.RateLimits{PerMinute: 1}

	decision, err := limiter.Consume(ctx, "cred-1", limits, 1)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = limiter.Consume(ctx, "cred-1", limits, 1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestTieredDefaultCost(t *testing.T) {
	limiter := NewTiered(NewMemoryStore(nil))
	ctx := context.Background()

	limits := models.RateLimits{PerMinute: 1, PerHour: 10, PerDay: 10}

	decision, err := limiter.Consume(ctx, "cred-1", limits, 0)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
}
