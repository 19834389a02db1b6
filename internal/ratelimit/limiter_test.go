package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func TestSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := Sliding{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := l.Allow(ctx, "verify:10.0.0.1", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-(i+1), remaining)
	}

	allowed, remaining, _, err := l.Allow(ctx, "verify:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	// other keys are independent
	allowed, _, _, err = l.Allow(ctx, "verify:10.0.0.2", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(window)

	allowed, _, _, err = l.Allow(ctx, "verify:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := Sliding{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}

func TestFixedMemoryStore(t *testing.T) {
	f := Fixed{Store: memory.NewStore()}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := f.Allow(ctx, "verify:10.0.0.1", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 3-(i+1), remaining)
		require.True(t, reset.After(time.Now()))
	}

	allowed, remaining, _, err := f.Allow(ctx, "verify:10.0.0.1", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}
