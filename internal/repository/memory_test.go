package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimitStore(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryRateLimitStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := store.CheckRateLimit(ctx, "ip", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := store.CheckRateLimit(ctx, "ip", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, _ = store.CheckRateLimit(ctx, "other", 2, time.Minute)
	assert.True(t, allowed, "keys are independent")

	now = now.Add(61 * time.Second)
	allowed, _ = store.CheckRateLimit(ctx, "ip", 2, time.Minute)
	assert.True(t, allowed, "window resets after expiry")
}

func TestMemoryRateLimitStore_Cleanup(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryRateLimitStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = store.CheckRateLimit(ctx, "a", 1, time.Second)
	_, _ = store.CheckRateLimit(ctx, "b", 1, time.Hour)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Cleanup())
	assert.Len(t, store.entries, 1)
}
