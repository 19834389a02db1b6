package cart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/cbhub/internal/pricing"
)

// LineItem is one distinct product/price entry in the cart. Identity is the
// (Name, UnitPrice) pair.
type LineItem struct {
	Name      string
	UnitPrice pricing.Money
	Qty       int
}

// Subtotal returns UnitPrice × Qty.
func (li LineItem) Subtotal() pricing.Money {
	return li.UnitPrice * pricing.Money(li.Qty)
}

func (li LineItem) sameProduct(name string, price pricing.Money) bool {
	return li.Name == name && li.UnitPrice == price
}

// persistedItem matches the storefront's cb_cart wire format where price is a
// major-unit number.
type persistedItem struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Qty   int         `json:"qty"`
}

// MarshalJSON encodes the item as {name, price, qty}.
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(persistedItem{
		Name:  li.Name,
		Price: pricing.MajorJSON(li.UnitPrice),
		Qty:   li.Qty,
	})
}

// UnmarshalJSON decodes the {name, price, qty} format.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw persistedItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price := 0.0
	if raw.Price != "" {
		f, err := raw.Price.Float64()
		if err != nil {
			return fmt.Errorf("decode price: %w", err)
		}
		price = f
	}
	li.Name = strings.TrimSpace(raw.Name)
	li.UnitPrice = pricing.FromMajor(price)
	li.Qty = raw.Qty
	return nil
}

// Lines converts items into pricing inputs.
func Lines(items []LineItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	return out
}

// Decode parses a persisted cart snapshot, dropping entries that violate the
// qty >= 1 invariant.
func Decode(data []byte) ([]LineItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.Qty < 1 || it.Name == "" || it.UnitPrice < 0 {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
