package cart_test

import (
	"context"
	"encoding/json"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/cart"
	"github.com/noah-isme/cbhub/internal/pricing"
)

func newStore(t *testing.T) (*cart.Store, *cart.MemoryStorage) {
	t.Helper()
	storage := cart.NewMemoryStorage()
	store, err := cart.Load(context.Background(), storage)
	require.NoError(t, err)
	return store, storage
}

func TestAddMatchingItemIncrementsQty(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.Add(ctx, "Widget", 10_000))
	require.NoError(t, store.Add(ctx, "Cap", 2_500))
	require.NoError(t, store.Add(ctx, "Widget", 10_000))

	items := store.Items()
	require.Len(t, items, 2)
	require.Equal(t, 2, items[0].Qty)
	require.Equal(t, 3, store.Count())

	// same name at a different price is a distinct line item
	require.NoError(t, store.Add(ctx, "Widget", 12_000))
	require.Equal(t, 3, store.Len())
}

func TestDecrementAtOneRemovesItem(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	require.NoError(t, store.Add(ctx, "Widget", 10_000))
	require.NoError(t, store.Add(ctx, "Cap", 2_500))

	require.NoError(t, store.Decrement(ctx, 0))
	require.Equal(t, 1, store.Len())
	require.Equal(t, "Cap", store.Items()[0].Name)

	require.ErrorIs(t, store.Decrement(ctx, 5), cart.ErrItemNotFound)
	require.ErrorIs(t, store.Remove(ctx, -1), cart.ErrItemNotFound)
	require.ErrorIs(t, store.Add(ctx, " ", 100), cart.ErrInvalidItem)
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	names := []string{"Widget", "Cap", "Mop", "Pods"}
	prices := []pricing.Money{100, 2_500, 10_000}

	for run := 0; run < 50; run++ {
		store, _ := newStore(t)
		for step := 0; step < 200; step++ {
			n := store.Len()
			switch op := rng.Intn(4); {
			case op == 0 || n == 0:
				_ = store.Add(ctx, names[rng.Intn(len(names))], prices[rng.Intn(len(prices))])
			case op == 1:
				require.NoError(t, store.Increment(ctx, rng.Intn(n)))
			case op == 2:
				require.NoError(t, store.Decrement(ctx, rng.Intn(n)))
			default:
				require.NoError(t, store.Remove(ctx, rng.Intn(n)))
			}

			var want pricing.Money
			for _, it := range store.Items() {
				require.GreaterOrEqual(t, it.Qty, 1)
				want += it.UnitPrice * pricing.Money(it.Qty)
			}
			require.Equal(t, want, store.Total())
		}
	}
}

func TestMutationsPersistSnapshot(t *testing.T) {
	ctx := context.Background()
	store, storage := newStore(t)
	require.NoError(t, store.Add(ctx, "Widget", 10_000))
	require.NoError(t, store.Increment(ctx, 0))

	raw, ok, err := storage.Get(ctx, cart.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"name":"Widget","price":100,"qty":2}]`, string(raw))

	reloaded, err := cart.Load(ctx, storage)
	require.NoError(t, err)
	require.Equal(t, store.Items(), reloaded.Items())

	require.NoError(t, store.Clear(ctx))
	_, ok, err = storage.Get(ctx, cart.StorageKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadDiscardsCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, cart.StorageKey, []byte("{not json")))

	store, err := cart.Load(ctx, storage)
	require.NoError(t, err)
	require.Zero(t, store.Len())
}

func TestLoadDropsInvalidQuantities(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, cart.StorageKey, []byte(`[{"name":"Widget","price":12.5,"qty":1},{"name":"Ghost","price":3,"qty":0}]`)))

	store, err := cart.Load(ctx, storage)
	require.NoError(t, err)
	require.Equal(t, []cart.LineItem{{Name: "Widget", UnitPrice: 1_250, Qty: 1}}, store.Items())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	var seen [][]cart.LineItem
	store.Subscribe(func(items []cart.LineItem) { seen = append(seen, items) })

	require.NoError(t, store.Add(ctx, "Widget", 10_000))
	require.NoError(t, store.Clear(ctx))

	require.Len(t, seen, 2)
	require.Len(t, seen[0], 1)
	require.Empty(t, seen[1])
}

func TestFileStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := &cart.FileStorage{Path: filepath.Join(t.TempDir(), "state", "storage.json")}

	store, err := cart.Load(ctx, storage)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, "Widget", 10_000))
	require.NoError(t, store.Add(ctx, "Widget", 10_000))

	reloaded, err := cart.Load(ctx, storage)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(20_000), reloaded.Total())
}

func TestRedisStorageScopesBySession(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	storage := cart.RedisStorage{Client: client, Session: "sess-1", TTL: time.Hour}
	store, err := cart.Load(ctx, storage)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, "Cap", 2_500))

	raw, err := mr.Get("cb_cart:sess-1")
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Equal(t, "Cap", decoded[0]["name"])
	require.True(t, mr.TTL("cb_cart:sess-1") > 0)

	other, err := cart.Load(ctx, cart.RedisStorage{Client: client, Session: "sess-2"})
	require.NoError(t, err)
	require.Zero(t, other.Len())
}
