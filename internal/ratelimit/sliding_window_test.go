package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllowsUpToLimit(t *testing.T) {
	sw := NewSlidingWindow(Limit{Requests: 3, Burst: 1, Window: time.Minute})
	defer sw.Close()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		res, err := sw.Check(ctx, "client")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 4, res.Limit)
		assert.Equal(t, 4-(i+1), res.Remaining)
	}

	res, err := sw.Check(ctx, "client")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 4, res.Count)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestSlidingWindowIsolatesKeys(t *testing.T) {
	sw := NewSlidingWindow(Limit{Requests: 1, Burst: 0, Window: time.Minute})
	defer sw.Close()
	ctx := context.Background()

	res, err := sw.Check(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = sw.Check(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = sw.Check(ctx, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a second key must have its own window")
}

func TestSlidingWindowExpiresOldRequests(t *testing.T) {
	sw := NewSlidingWindow(Limit{Requests: 1, Burst: 0, Window: 20 * time.Millisecond})
	defer sw.Close()
	ctx := context.Background()

	res, err := sw.Check(ctx, "client")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = sw.Check(ctx, "client")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	time.Sleep(30 * time.Millisecond)

	res, err = sw.Check(ctx, "client")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "requests outside the window must not count")
}

func TestSlidingWindowClose(t *testing.T) {
	sw := NewSlidingWindow(Limit{Requests: 1, Window: time.Minute})
	assert.NoError(t, sw.Close())
}
