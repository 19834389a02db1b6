package storefront_test

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbhub/internal/cart"
	"github.com/noah-isme/cbhub/internal/checkout"
	"github.com/noah-isme/cbhub/internal/messaging"
	"github.com/noah-isme/cbhub/internal/storefront"
	"github.com/noah-isme/cbhub/internal/verify"
	"github.com/noah-isme/cbhub/internal/widget"
)

type paidWidget struct{ req widget.Request }

func (p *paidWidget) Pay(_ context.Context, req widget.Request) (widget.Outcome, error) {
	p.req = req
	return widget.Outcome{Kind: widget.Completed, Reference: "ref_shell"}, nil
}

type scriptedVerifier struct{ results []bool }

func (s *scriptedVerifier) Verify(context.Context, string) (verify.Result, error) {
	ok := s.results[0]
	s.results = s.results[1:]
	return verify.Result{Success: ok}, nil
}

func runShell(t *testing.T, script string, w checkout.PaymentWidget, v checkout.Verifier) (string, *cart.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := cart.Load(ctx, cart.NewMemoryStorage())
	require.NoError(t, err)

	chat := messaging.WhatsApp{Phone: "233540639091"}
	var out bytes.Buffer
	shell := &storefront.Shell{
		Panel: storefront.NewPanel(store, chat, "GHS", nil),
		Checkout: func() *checkout.Flow {
			return checkout.New(store, w, v, checkout.Options{Chat: chat, OrderID: func() string { return "CB123456" }})
		},
		In:  bufio.NewReader(strings.NewReader(script)),
		Out: &out,
	}
	require.NoError(t, shell.Run(ctx))
	return out.String(), store
}

func TestShellCartCommands(t *testing.T) {
	out, store := runShell(t, "add 100 Widget\nadd 100 Widget\nadd 12.50 Cap\ndec 2\ncart\nrm 9\nbogus\nquit\n", nil, nil)

	require.Equal(t, 2, store.Count())
	require.Contains(t, out, "1. Widget x2 @ GHS 100 = GHS 200")
	require.Contains(t, out, "Total: GHS 200")
	require.Contains(t, out, "https://wa.me/233540639091?text=")
	require.Contains(t, out, `error: unknown command "bogus"`)
	require.Contains(t, out, "error:")
}

func TestShellCheckoutWithRetry(t *testing.T) {
	w := &paidWidget{}
	v := &scriptedVerifier{results: []bool{false, true}}
	out, store := runShell(t, "add 100 Widget\npay ama@example.com 054-063-9091\nretry\n", w, v)

	require.EqualValues(t, 10_000, w.req.Amount)
	require.Equal(t, "ama@example.com", w.req.Email)
	require.Contains(t, out, "contact support with reference: ref_shell")
	require.Contains(t, out, "[Retry Verification] (enabled)")
	require.Contains(t, out, "Order CB123456 confirmed (GHS 100, ref ref_shell)")
	require.Zero(t, store.Count())
}

func TestShellPayRejectsInvalidEmail(t *testing.T) {
	out, _ := runShell(t, "add 5 Mop\npay nope 0540639091\n", &paidWidget{}, &scriptedVerifier{})
	require.Contains(t, out, "Please enter a valid email address.")
}

func TestShellRetryWithoutCheckout(t *testing.T) {
	out, _ := runShell(t, "retry\n", nil, nil)
	require.Contains(t, out, "error: checkout: action not allowed in current state")
}
