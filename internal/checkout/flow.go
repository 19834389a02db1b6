// Package checkout drives a single purchase from contact capture through the
// hosted payment widget to server-side verification and confirmation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbhub/internal/cart"
	"github.com/noah-isme/cbhub/internal/messaging"
	"github.com/noah-isme/cbhub/internal/pricing"
	"github.com/noah-isme/cbhub/internal/verify"
	"github.com/noah-isme/cbhub/internal/widget"
)

// State of the checkout.
type State int

const (
	Empty State = iota
	Idle
	Validating
	AwaitingPayment
	Verifying
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case AwaitingPayment:
		return "awaiting_payment"
	case Verifying:
		return "verifying"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Button labels.
const (
	LabelPay       = "Secure Payment with Paystack"
	LabelOpening   = "Initializing Secure Shield..."
	LabelVerifying = "Finalizing Order..."
	LabelRetry     = "Retry Verification"
)

const alertCancelled = "Transaction cancelled."

var (
	ErrEmptyCart    = errors.New("checkout: cart is empty")
	ErrInvalidState = errors.New("checkout: action not allowed in current state")
	// ErrNotVerified is returned when the backend answers {success:false}.
	ErrNotVerified = errors.New("checkout: payment could not be verified")
)

// PaymentWidget opens the hosted payment interface.
type PaymentWidget interface {
	Pay(ctx context.Context, req widget.Request) (widget.Outcome, error)
}

// Verifier confirms a provider reference with the backend.
type Verifier interface {
	Verify(ctx context.Context, reference string) (verify.Result, error)
}

// Line is one row of the order summary.
type Line struct {
	Name       string
	Qty        int
	TotalLabel string
}

// Confirmation is shown once the payment is verified.
type Confirmation struct {
	OrderID      string
	Reference    string
	TotalLabel   string
	TrackingLink string
}

// View is everything the checkout page renders.
type View struct {
	State         State
	Lines         []Line
	SubtotalLabel string
	TotalLabel    string
	ButtonLabel   string
	ButtonEnabled bool
	Alert         string
	Focus         string
	Confirmation  *Confirmation
}

// Options configure a Flow. Zero values fall back to defaults.
type Options struct {
	Currency  string
	Chat      messaging.WhatsApp
	Logger    zerolog.Logger
	OrderID   func() string
	Reference func() string
}

// Flow is the checkout state machine over a snapshot of the cart.
type Flow struct {
	store    *cart.Store
	widget   PaymentWidget
	verifier Verifier
	opts     Options

	mu           sync.Mutex
	state        State
	items        []cart.LineItem
	summary      pricing.Summary
	reference    string
	alert        string
	focus        string
	confirmation *Confirmation
}

// New reads the cart once and returns a flow in Idle, or Empty for an empty cart.
func New(store *cart.Store, w PaymentWidget, v Verifier, opts Options) *Flow {
	if strings.TrimSpace(opts.Currency) == "" {
		opts.Currency = "GHS"
	}
	if opts.OrderID == nil {
		opts.OrderID = NewOrderIDs().Next
	}
	if opts.Reference == nil {
		opts.Reference = uuid.NewString
	}
	items := store.Items()
	f := &Flow{
		store:    store,
		widget:   w,
		verifier: v,
		opts:     opts,
		items:    items,
		summary:  pricing.Compute(cart.Lines(items)),
		state:    Idle,
	}
	if len(items) == 0 {
		f.state = Empty
	}
	return f
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reference returns the provider reference of the last completed widget session.
func (f *Flow) Reference() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reference
}

// Pay validates contact details, opens the widget and verifies the outcome.
// A cancelled widget returns nil and leaves the flow Idle.
func (f *Flow) Pay(ctx context.Context, contact ContactInfo) error {
	f.mu.Lock()
	switch f.state {
	case Empty:
		f.mu.Unlock()
		return ErrEmptyCart
	case Idle:
	default:
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.state = Validating
	f.alert, f.focus = "", ""
	contact = contact.Normalize()
	if err := contact.Validate(); err != nil {
		f.state = Idle
		var ve *ValidationError
		if errors.As(err, &ve) {
			f.alert, f.focus = ve.Message, ve.Field
		}
		f.mu.Unlock()
		return err
	}
	f.state = AwaitingPayment
	req := widget.Request{
		Amount:    f.summary.Total,
		Currency:  f.opts.Currency,
		Email:     contact.Email,
		Reference: f.opts.Reference(),
		Metadata: widget.Metadata{CustomFields: []widget.CustomField{
			{DisplayName: "Mobile Number", VariableName: "mobile_number", Value: contact.Phone},
			{DisplayName: "Cart Details", VariableName: "cart_details", Value: CartDetails(f.items)},
		}},
	}
	f.mu.Unlock()

	outcome, err := f.widget.Pay(ctx, req)
	if err != nil {
		f.mu.Lock()
		f.state = Idle
		f.alert = "Payment could not be started. Please try again."
		f.mu.Unlock()
		f.opts.Logger.Warn().Err(err).Str("reference", req.Reference).Msg("checkout_widget_failed")
		return fmt.Errorf("checkout: open widget: %w", err)
	}
	if outcome.Kind != widget.Completed {
		f.mu.Lock()
		f.state = Idle
		f.alert = alertCancelled
		f.mu.Unlock()
		f.opts.Logger.Info().Str("reference", req.Reference).Msg("checkout_cancelled")
		return nil
	}

	f.mu.Lock()
	f.reference = outcome.Reference
	f.state = Verifying
	f.mu.Unlock()
	return f.verify(ctx, outcome.Reference)
}

// Retry re-runs verification for the reference that previously failed.
func (f *Flow) Retry(ctx context.Context) error {
	f.mu.Lock()
	if f.state != Failed {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.state = Verifying
	f.alert = ""
	ref := f.reference
	f.mu.Unlock()
	return f.verify(ctx, ref)
}

func (f *Flow) verify(ctx context.Context, reference string) error {
	res, err := f.verifier.Verify(ctx, reference)
	if err == nil && !res.Success {
		err = ErrNotVerified
	}
	if err != nil {
		f.mu.Lock()
		f.state = Failed
		f.alert = "Payment successful but order verification failed. Please contact support with reference: " + reference
		f.mu.Unlock()
		f.opts.Logger.Warn().Err(err).Str("reference", reference).Msg("checkout_verification_failed")
		return err
	}

	orderID := f.opts.OrderID()
	if clearErr := f.store.Clear(ctx); clearErr != nil {
		f.opts.Logger.Warn().Err(clearErr).Str("order_id", orderID).Msg("checkout_cart_clear_failed")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	totalLabel := pricing.Format(f.opts.Currency, f.summary.Total)
	lines := make([]messaging.Line, 0, len(f.items))
	for _, it := range f.items {
		lines = append(lines, messaging.Line{Name: it.Name, Qty: it.Qty})
	}
	f.confirmation = &Confirmation{
		OrderID:    orderID,
		Reference:  reference,
		TotalLabel: totalLabel,
		TrackingLink: f.opts.Chat.PaidOrderLink(messaging.PaidOrder{
			OrderID:   orderID,
			Items:     lines,
			Total:     totalLabel,
			Reference: reference,
		}),
	}
	f.state = Confirmed
	f.opts.Logger.Info().Str("order_id", orderID).Str("reference", reference).Int64("total", f.summary.Total).Msg("checkout_confirmed")
	return nil
}

// View renders the current state.
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := View{
		State:         f.state,
		SubtotalLabel: pricing.Format(f.opts.Currency, f.summary.Subtotal),
		TotalLabel:    pricing.Format(f.opts.Currency, f.summary.Total),
		Alert:         f.alert,
		Focus:         f.focus,
	}
	for _, it := range f.items {
		v.Lines = append(v.Lines, Line{Name: it.Name, Qty: it.Qty, TotalLabel: pricing.Format(f.opts.Currency, it.Subtotal())})
	}
	switch f.state {
	case Empty:
		v.ButtonLabel = LabelPay
	case Idle:
		v.ButtonLabel, v.ButtonEnabled = LabelPay, true
	case Validating, AwaitingPayment:
		v.ButtonLabel = LabelOpening
	case Verifying:
		v.ButtonLabel = LabelVerifying
	case Failed:
		v.ButtonLabel, v.ButtonEnabled = LabelRetry, true
	case Confirmed:
		c := *f.confirmation
		v.Confirmation = &c
	}
	return v
}

// CartDetails renders "2x Widget, 1x Cap" for the payment metadata.
func CartDetails(items []cart.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Qty, it.Name))
	}
	return strings.Join(parts, ", ")
}
