// Package messaging builds chat-app deep links carrying pre-filled order text.
package messaging

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the WhatsApp click-to-chat endpoint.
const DefaultBaseURL = "https://wa.me"

// WhatsApp produces wa.me links for a merchant number.
type WhatsApp struct {
	BaseURL  string
	Phone    string
	Merchant string
}

// Line is one itemised entry in a chat message.
type Line struct {
	Name string
	Qty  int
}

// PaidOrder describes a verified order for the delivery-tracking message.
type PaidOrder struct {
	OrderID   string
	Items     []Line
	Total     string
	Reference string
}

// Link returns a deep link whose text parameter is the percent-encoded message.
func (w WhatsApp) Link(lines []string) string {
	base := strings.TrimRight(strings.TrimSpace(w.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	phone := digitsOnly(w.Phone)
	text := Encode(strings.Join(lines, "\n"))
	if phone == "" {
		return fmt.Sprintf("%s/?text=%s", base, text)
	}
	return fmt.Sprintf("%s/%s?text=%s", base, phone, text)
}

// OrderRequestLink builds the pre-checkout "order via chat" link from cart lines.
func (w WhatsApp) OrderRequestLink(items []Line, total string) string {
	lines := []string{w.greeting(), "", "I'd like to order:"}
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("• %s (%d)", it.Name, it.Qty))
	}
	lines = append(lines, "", "*Total:* "+total)
	return w.Link(lines)
}

// PaidOrderLink builds the post-payment delivery tracking link.
func (w WhatsApp) PaidOrderLink(order PaidOrder) string {
	lines := []string{
		w.greeting(),
		"",
		fmt.Sprintf("*ORDER PAID: %s*", order.OrderID),
		"",
		"*Items:*",
	}
	for _, it := range order.Items {
		lines = append(lines, fmt.Sprintf("• %s (%d)", it.Name, it.Qty))
	}
	lines = append(lines,
		"",
		"*Total:* "+order.Total,
		"",
		"*Paystack Ref:* "+order.Reference,
		"",
		"Please proceed with my delivery tracking. Thanks!",
	)
	return w.Link(lines)
}

func (w WhatsApp) greeting() string {
	name := strings.TrimSpace(w.Merchant)
	if name == "" {
		return "Hi!"
	}
	return fmt.Sprintf("Hi %s!", name)
}

// Encode percent-encodes text for a query value, using %20 for spaces.
func Encode(text string) string {
	return strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
