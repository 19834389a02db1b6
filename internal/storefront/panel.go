// Package storefront turns cart state into a render model for the product
// listing page and owns the cart panel interactions.
package storefront

import (
	"context"
	"sync"

	"github.com/noah-isme/cbhub/internal/cart"
	"github.com/noah-isme/cbhub/internal/messaging"
	"github.com/noah-isme/cbhub/internal/pricing"
)

// ItemView is a single rendered cart row.
type ItemView struct {
	Index      int
	Name       string
	Qty        int
	UnitLabel  string
	TotalLabel string
}

// View is everything the page needs to draw the cart badge and panel.
type View struct {
	Items      []ItemView
	Badge      int
	Total      pricing.Money
	TotalLabel string
	Empty      bool
	Open       bool
	OrderLink  string
}

// Renderer draws a View.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

// Render implements Renderer.
func (f RendererFunc) Render(v View) { f(v) }

// Panel binds a cart store to a renderer.
type Panel struct {
	Store    *cart.Store
	Chat     messaging.WhatsApp
	Currency string

	mu       sync.Mutex
	open     bool
	renderer Renderer
}

// NewPanel subscribes the panel to the store so every mutation re-renders.
func NewPanel(store *cart.Store, chat messaging.WhatsApp, currency string, renderer Renderer) *Panel {
	p := &Panel{Store: store, Chat: chat, Currency: currency, renderer: renderer}
	store.Subscribe(func(items []cart.LineItem) {
		p.draw(p.build(items))
	})
	return p
}

// Render builds the current view without drawing it.
func (p *Panel) Render() View {
	return p.build(p.Store.Items())
}

// AddToCart handles the product card "add" action.
func (p *Panel) AddToCart(ctx context.Context, name string, price pricing.Money) error {
	return p.Store.Add(ctx, name, price)
}

// Increase handles the "+" control on a cart row.
func (p *Panel) Increase(ctx context.Context, index int) error {
	return p.Store.Increment(ctx, index)
}

// Decrease handles the "-" control on a cart row.
func (p *Panel) Decrease(ctx context.Context, index int) error {
	return p.Store.Decrement(ctx, index)
}

// RemoveItem handles the remove control on a cart row.
func (p *Panel) RemoveItem(ctx context.Context, index int) error {
	return p.Store.Remove(ctx, index)
}

// OpenPanel shows the cart panel.
func (p *Panel) OpenPanel() { p.setOpen(true) }

// ClosePanel hides the cart panel.
func (p *Panel) ClosePanel() { p.setOpen(false) }

// Toggle flips the panel visibility.
func (p *Panel) Toggle() {
	p.mu.Lock()
	open := !p.open
	p.mu.Unlock()
	p.setOpen(open)
}

func (p *Panel) setOpen(open bool) {
	p.mu.Lock()
	p.open = open
	p.mu.Unlock()
	p.draw(p.Render())
}

func (p *Panel) draw(v View) {
	if p.renderer != nil {
		p.renderer.Render(v)
	}
}

func (p *Panel) build(items []cart.LineItem) View {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()

	summary := pricing.Compute(cart.Lines(items))
	view := View{
		Items:      make([]ItemView, 0, len(items)),
		Badge:      summary.Units,
		Total:      summary.Total,
		TotalLabel: pricing.Format(p.Currency, summary.Total),
		Empty:      len(items) == 0,
		Open:       open,
	}
	lines := make([]messaging.Line, 0, len(items))
	for i, it := range items {
		view.Items = append(view.Items, ItemView{
			Index:      i,
			Name:       it.Name,
			Qty:        it.Qty,
			UnitLabel:  pricing.Format(p.Currency, it.UnitPrice),
			TotalLabel: pricing.Format(p.Currency, it.Subtotal()),
		})
		lines = append(lines, messaging.Line{Name: it.Name, Qty: it.Qty})
	}
	if !view.Empty {
		view.OrderLink = p.Chat.OrderRequestLink(lines, view.TotalLabel)
	}
	return view
}
