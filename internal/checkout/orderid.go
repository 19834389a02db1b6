package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// OrderIDPrefix is prepended to every generated order id.
const OrderIDPrefix = "CB"

const orderIDSpace = 900000

// OrderIDs issues CB + 6 digit ids and never repeats one within its lifetime.
type OrderIDs struct {
	mu     sync.Mutex
	issued map[int64]struct{}
}

// NewOrderIDs returns an empty generator.
func NewOrderIDs() *OrderIDs {
	return &OrderIDs{issued: make(map[int64]struct{})}
}

// Next returns a fresh order id.
func (g *OrderIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.issued) >= orderIDSpace {
		g.issued = make(map[int64]struct{})
	}
	for {
		n := randomSuffix()
		if _, dup := g.issued[n]; dup {
			continue
		}
		g.issued[n] = struct{}{}
		return fmt.Sprintf("%s%06d", OrderIDPrefix, n)
	}
}

func randomSuffix() int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(orderIDSpace))
	if err != nil {
		panic(fmt.Sprintf("checkout: crypto/rand unavailable: %v", err))
	}
	return 100000 + v.Int64()
}
