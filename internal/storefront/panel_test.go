package storefront_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/cart"
	"github.com/noah-isme/cbhub/internal/messaging"
	"github.com/noah-isme/cbhub/internal/storefront"
)

func TestPanelRendersOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	store, err := cart.Load(ctx, cart.NewMemoryStorage())
	require.NoError(t, err)

	var views []storefront.View
	panel := storefront.NewPanel(store, messaging.WhatsApp{Phone: "233540639091"}, "GHS",
		storefront.RendererFunc(func(v storefront.View) { views = append(views, v) }))

	require.NoError(t, panel.AddToCart(ctx, "Widget", 10_000))
	require.NoError(t, panel.AddToCart(ctx, "Widget", 10_000))
	require.NoError(t, panel.AddToCart(ctx, "Cap", 120_000))

	require.Len(t, views, 3)
	last := views[2]
	require.Equal(t, 3, last.Badge)
	require.Equal(t, "GHS 1,400", last.TotalLabel)
	require.Len(t, last.Items, 2)
	require.Equal(t, "GHS 200", last.Items[0].TotalLabel)
	require.Equal(t, "GHS 100", last.Items[0].UnitLabel)
	require.Contains(t, last.OrderLink, "https://wa.me/233540639091?text=")
	require.False(t, last.Empty)

	require.NoError(t, panel.Decrease(ctx, 1))
	require.Len(t, views[len(views)-1].Items, 1)
}

func TestPanelOpenCloseAndEmptyState(t *testing.T) {
	ctx := context.Background()
	store, err := cart.Load(ctx, cart.NewMemoryStorage())
	require.NoError(t, err)

	var last storefront.View
	panel := storefront.NewPanel(store, messaging.WhatsApp{}, "GHS",
		storefront.RendererFunc(func(v storefront.View) { last = v }))

	panel.OpenPanel()
	require.True(t, last.Open)
	require.True(t, last.Empty)
	require.Empty(t, last.OrderLink)
	require.Equal(t, "GHS 0", last.TotalLabel)

	panel.Toggle()
	require.False(t, last.Open)

	require.NoError(t, panel.AddToCart(ctx, "Mop", 5_000))
	require.NoError(t, panel.RemoveItem(ctx, 0))
	require.True(t, last.Empty)
	require.Zero(t, last.Badge)
}
