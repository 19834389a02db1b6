package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cbhub/internal/pricing"
)

// StorageKey is the durable storage key holding the cart snapshot.
const StorageKey = "cb_cart"

// ErrItemNotFound indicates the requested cart index does not exist.
var ErrItemNotFound = errors.New("cart item not found")

// ErrInvalidItem is returned when an item has no name or a negative price.
var ErrInvalidItem = errors.New("invalid cart item")

// Listener is notified with a copy of the cart after every mutation.
type Listener func(items []LineItem)

// Store owns the cart for one browsing session. Every mutation persists the
// full snapshot before listeners are notified.
type Store struct {
	mu        sync.Mutex
	storage   Storage
	key       string
	items     []LineItem
	listeners []Listener
	logger    zerolog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithKey overrides the storage key (defaults to StorageKey).
func WithKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.key = key
		}
	}
}

// WithLogger attaches a logger used for load warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Load builds a store from the snapshot currently held in storage. A corrupt
// snapshot yields an empty cart.
func Load(ctx context.Context, storage Storage, opts ...Option) (*Store, error) {
	if storage == nil {
		return nil, errors.New("cart: storage not configured")
	}
	s := &Store{storage: storage, key: StorageKey, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	raw, ok, err := storage.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("cart: load snapshot: %w", err)
	}
	if ok {
		items, err := Decode(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("discarding unreadable cart snapshot")
			items = nil
		}
		s.items = items
	}
	return s, nil
}

// Subscribe registers a listener invoked after each mutation.
func (s *Store) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Items returns a copy of the current line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// Len returns the number of distinct line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Count returns the total number of units, used for the cart badge.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Compute(Lines(s.items)).Units
}

// Total returns the sum of UnitPrice × Qty over all items.
func (s *Store) Total() pricing.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Compute(Lines(s.items)).Total
}

// Add inserts a product or increments the quantity of a matching (name, price) entry.
func (s *Store) Add(ctx context.Context, name string, price pricing.Money) error {
	name = strings.TrimSpace(name)
	if name == "" || price < 0 {
		return ErrInvalidItem
	}
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		for i := range items {
			if items[i].sameProduct(name, price) {
				items[i].Qty++
				return items, nil
			}
		}
		return append(items, LineItem{Name: name, UnitPrice: price, Qty: 1}), nil
	})
}

// Increment raises the quantity of the item at index by one.
func (s *Store) Increment(ctx context.Context, index int) error {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemNotFound
		}
		items[index].Qty++
		return items, nil
	})
}

// Decrement lowers the quantity of the item at index, removing it at zero.
func (s *Store) Decrement(ctx context.Context, index int) error {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemNotFound
		}
		if items[index].Qty <= 1 {
			return append(items[:index], items[index+1:]...), nil
		}
		items[index].Qty--
		return items, nil
	})
}

// Remove deletes the item at index regardless of quantity.
func (s *Store) Remove(ctx context.Context, index int) error {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if index < 0 || index >= len(items) {
			return nil, ErrItemNotFound
		}
		return append(items[:index], items[index+1:]...), nil
	})
}

// Clear empties the cart and deletes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.storage.Remove(ctx, s.key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("cart: clear snapshot: %w", err)
	}
	s.items = nil
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	notify(listeners, nil)
	return nil
}

func (s *Store) mutate(ctx context.Context, fn func([]LineItem) ([]LineItem, error)) error {
	s.mu.Lock()
	next, err := fn(clone(s.items))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	data, err := json.Marshal(nonNil(next))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("cart: encode snapshot: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("cart: persist snapshot: %w", err)
	}
	s.items = next
	snapshot := clone(next)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	notify(listeners, snapshot)
	return nil
}

func notify(listeners []Listener, items []LineItem) {
	for _, fn := range listeners {
		fn(clone(items))
	}
}

func clone(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	return append([]LineItem(nil), items...)
}

func nonNil(items []LineItem) []LineItem {
	if items == nil {
		return []LineItem{}
	}
	return items
}
