package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/noah-isme/cbhub/internal/common"
	"github.com/noah-isme/cbhub/internal/events"
	"github.com/noah-isme/cbhub/internal/pricing"
)

// EmailNotifier sends payment receipts for selected topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	From         string
	Merchant     string
	TopicToggles map[string]bool
}

type chargePayload struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
	Email string `json:"email"`
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	var payload chargePayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := strings.TrimSpace(payload.Customer.Email)
	if to == "" {
		to = strings.TrimSpace(payload.Email)
	}
	if to == "" {
		return nil
	}
	if payload.Reference == "" {
		payload.Reference = event.Reference
	}
	return n.Mail.Send(to, n.subject(), n.body(payload, event.OccurredAt))
}

func (n EmailNotifier) merchant() string {
	if m := strings.TrimSpace(n.Merchant); m != "" {
		return m
	}
	return "Centuryboy's Hub"
}

func (n EmailNotifier) subject() string {
	return fmt.Sprintf("Payment received - %s", n.merchant())
}

func (n EmailNotifier) body(p chargePayload, occurred time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Thank you for shopping with %s.</p>", html.EscapeString(n.merchant()))
	if p.Amount > 0 {
		fmt.Fprintf(&b, "<p>Amount: %s</p>", html.EscapeString(pricing.Format(p.Currency, p.Amount)))
	}
	fmt.Fprintf(&b, "<p>Paystack reference: %s</p>", html.EscapeString(p.Reference))
	when := occurred
	if t, err := time.Parse(time.RFC3339, p.PaidAt); err == nil {
		when = t
	}
	if !when.IsZero() {
		fmt.Fprintf(&b, "<p>Paid at: %s</p>", when.UTC().Format(time.RFC1123))
	}
	if from := strings.TrimSpace(n.From); from != "" {
		fmt.Fprintf(&b, "<p>Questions? Reply to %s.</p>", html.EscapeString(from))
	}
	return b.String()
}
