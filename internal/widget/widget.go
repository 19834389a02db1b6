// Package widget adapts the hosted Paystack Inline payment popup into a single
// awaited outcome.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/cbhub/internal/pricing"
)

// Kind tags the outcome of a widget session.
type Kind int

const (
	// Completed means the provider reported a finished payment. It still needs
	// server-side verification.
	Completed Kind = iota + 1
	// Cancelled means the customer closed the widget.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the single result of one widget invocation.
type Outcome struct {
	Kind      Kind
	Reference string
}

// CustomField is a Paystack metadata custom field.
type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

// Metadata is attached to the transaction and shown on the provider dashboard.
type Metadata struct {
	CustomFields []CustomField `json:"custom_fields"`
}

// Setup mirrors the options passed to PaystackPop.setup.
type Setup struct {
	Key      string   `json:"key"`
	Email    string   `json:"email"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
	Ref      string   `json:"ref"`
	Metadata Metadata `json:"metadata"`
}

// Callbacks are invoked by the opener. Only the first call across both has effect.
type Callbacks struct {
	OnSuccess func(reference string)
	OnClose   func()
}

// Opener is the externally rendered payment interface.
type Opener interface {
	Open(ctx context.Context, setup Setup, cb Callbacks) error
}

// Request carries what the checkout knows about the payment.
type Request struct {
	Amount    pricing.Money
	Currency  string
	Email     string
	Reference string
	Metadata  Metadata
}

// ErrInvalidRequest is returned before the widget opens when the request cannot be paid.
var ErrInvalidRequest = errors.New("widget: invalid payment request")

// Adapter configures and opens the widget.
type Adapter struct {
	PublicKey string
	Opener    Opener
}

// Pay opens the widget and blocks until it completes, is cancelled or ctx ends.
func (a Adapter) Pay(ctx context.Context, req Request) (Outcome, error) {
	if a.Opener == nil {
		return Outcome{}, errors.New("widget: opener not configured")
	}
	if strings.TrimSpace(req.Email) == "" || req.Amount <= 0 || strings.TrimSpace(req.Reference) == "" {
		return Outcome{}, ErrInvalidRequest
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "GHS"
	}
	setup := Setup{
		Key:      a.PublicKey,
		Email:    strings.TrimSpace(req.Email),
		Amount:   req.Amount,
		Currency: currency,
		Ref:      req.Reference,
		Metadata: req.Metadata,
	}

	results := make(chan Outcome, 1)
	var once sync.Once
	deliver := func(o Outcome) {
		once.Do(func() { results <- o })
	}
	cb := Callbacks{
		OnSuccess: func(reference string) {
			if strings.TrimSpace(reference) == "" {
				reference = setup.Ref
			}
			deliver(Outcome{Kind: Completed, Reference: reference})
		},
		OnClose: func() { deliver(Outcome{Kind: Cancelled}) },
	}
	if err := a.Opener.Open(ctx, setup, cb); err != nil {
		return Outcome{}, fmt.Errorf("widget: open: %w", err)
	}
	select {
	case o := <-results:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
