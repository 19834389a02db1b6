package events

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamRecordsThroughBus(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := RedisStream{Client: client}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	bus := &Bus{Store: store, Now: func() time.Time { return fixed }}

	ctx := context.Background()
	first, err := bus.Emit(ctx, TopicChargeSuccess, "ref_1", map[string]any{"amount": 20000})
	require.NoError(t, err)
	_, err = bus.Emit(ctx, TopicPaymentVerified, "ref_2", nil)
	require.NoError(t, err)

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "ref_2", recent[0].Reference)

	got := recent[1]
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, TopicChargeSuccess, got.Topic)
	require.JSONEq(t, `{"amount":20000}`, string(got.Payload))
	require.True(t, fixed.Equal(got.OccurredAt))
}

func TestRedisStreamRequiresClient(t *testing.T) {
	require.Error(t, RedisStream{}.Record(context.Background(), Event{}))
}
