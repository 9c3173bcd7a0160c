package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemory()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "payment-type", map[string]string{"id": "3"}, time.Minute))
	var got map[string]string
	require.NoError(t, c.GetJSON(ctx, "payment-type", &got))
	assert.Equal(t, "3", got["id"])

	require.NoError(t, c.Delete(ctx, "payment-type"))
	assert.ErrorIs(t, c.GetJSON(ctx, "payment-type", &got), ErrMiss)

	require.NoError(t, c.SetJSON(ctx, "payment-type", map[string]string{"id": "3"}, time.Minute))
	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, "payment-type", &got), ErrMiss)
	assert.ErrorIs(t, c.GetJSON(ctx, "missing", &got), ErrMiss)
}

func TestMemoryLimiterIsPerKey(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for range 3 {
		ok, err := l.Allow(ctx, "staff:7")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "staff:7")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "staff:8")
	assert.True(t, ok)
}

func TestLimiterDisabledWhenZero(t *testing.T) {
	l := NewMemoryLimiter(0, time.Minute)
	for range 10 {
		ok, err := l.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
