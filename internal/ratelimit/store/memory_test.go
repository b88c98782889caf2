package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/pkg/platform/clock"
)

var baseTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestInMemoryStore_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	c := clock.NewMutable(baseTime)
	s := NewInMemory(c)

	for i := range 3 {
		res, err := s.AllowN(ctx, "k", 1, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		c.Advance(10 * time.Second)
	}

	res, err := s.AllowN(ctx, "k", 1, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, baseTime.Add(time.Minute), res.ResetAt)
	assert.Equal(t, 30, res.RetryAfter)

	// the first request leaves the window
	c.Set(baseTime.Add(time.Minute))
	res, err = s.AllowN(ctx, "k", 1, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Zero(t, res.Remaining)
}

func TestInMemoryStore_CostLargerThanBudget(t *testing.T) {
	s := NewInMemory(clock.Fixed(baseTime))

	res, err := s.AllowN(context.Background(), "k", 5, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 60, res.RetryAfter)
}

func TestInMemoryStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory(clock.Fixed(baseTime))

	res, err := s.AllowN(ctx, "a", 1, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = s.AllowN(ctx, "b", 1, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestInMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	c := clock.NewMutable(baseTime)
	s := NewInMemory(c)

	_, _ = s.AllowN(ctx, "old", 1, 5, time.Minute)
	c.Advance(50 * time.Second)
	_, _ = s.AllowN(ctx, "recent", 1, 5, time.Minute)
	c.Advance(20 * time.Second)

	assert.Equal(t, 1, s.Prune())
	assert.Len(t, s.windows, 1)
	assert.Contains(t, s.windows, "recent")
}
