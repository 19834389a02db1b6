package storefront

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/noah-isme/cbhub/internal/checkout"
	"github.com/noah-isme/cbhub/internal/pricing"
)

// CheckoutFactory starts a checkout over the current cart contents.
type CheckoutFactory func() *checkout.Flow

// Shell is a line-oriented front end over a Panel and the checkout flow.
type Shell struct {
	Panel    *Panel
	Checkout CheckoutFactory
	In       *bufio.Reader
	Out      io.Writer

	flow *checkout.Flow
}

const shellHelp = `commands:
  add <price> <name>      add a product (price in major units, e.g. 12.50)
  inc|dec|rm <n>          change cart row n
  cart | open | close     show or toggle the cart panel
  pay <email> <phone>     check out with Paystack
  retry                   retry a failed verification
  quit
`

// Run reads commands until quit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprint(s.Out, shellHelp)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(s.Out, "> ")
		line, err := s.In.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if quit := s.Exec(ctx, line); quit {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Exec runs one command line, writing its output to Out. It reports whether
// the line asked to quit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(s.Out, shellHelp)
	case "add":
		if len(args) < 2 {
			err = errors.New("usage: add <price> <name>")
			break
		}
		var price float64
		price, err = strconv.ParseFloat(args[0], 64)
		if err == nil {
			err = s.Panel.AddToCart(ctx, strings.Join(args[1:], " "), pricing.FromMajor(price))
		}
	case "inc", "dec", "rm":
		var idx int
		idx, err = s.index(args)
		if err != nil {
			break
		}
		switch cmd {
		case "inc":
			err = s.Panel.Increase(ctx, idx)
		case "dec":
			err = s.Panel.Decrease(ctx, idx)
		default:
			err = s.Panel.RemoveItem(ctx, idx)
		}
	case "cart":
		WriteView(s.Out, s.Panel.Render())
	case "open":
		s.Panel.OpenPanel()
	case "close":
		s.Panel.ClosePanel()
	case "pay":
		if len(args) < 2 {
			err = errors.New("usage: pay <email> <phone>")
			break
		}
		s.flow = s.Checkout()
		err = s.flow.Pay(ctx, checkout.ContactInfo{Email: args[0], Phone: strings.Join(args[1:], "")})
		WriteCheckout(s.Out, s.flow.View())
	case "retry":
		if s.flow == nil {
			err = checkout.ErrInvalidState
			break
		}
		err = s.flow.Retry(ctx)
		WriteCheckout(s.Out, s.flow.View())
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
	}
	return false
}

// index parses the 1-based row number shown by WriteView.
func (s *Shell) index(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("row number required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid row %q", args[0])
	}
	return n - 1, nil
}

// WriteView prints the cart panel.
func WriteView(w io.Writer, v View) {
	if v.Empty {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	fmt.Fprintf(w, "Cart (%d)\n", v.Badge)
	for _, it := range v.Items {
		fmt.Fprintf(w, "  %d. %s x%d @ %s = %s\n", it.Index+1, it.Name, it.Qty, it.UnitLabel, it.TotalLabel)
	}
	fmt.Fprintf(w, "Total: %s\n", v.TotalLabel)
	if v.OrderLink != "" {
		fmt.Fprintf(w, "Order via WhatsApp: %s\n", v.OrderLink)
	}
}

// WriteCheckout prints the checkout page state.
func WriteCheckout(w io.Writer, v checkout.View) {
	if v.Alert != "" {
		fmt.Fprintf(w, "! %s\n", v.Alert)
	}
	if c := v.Confirmation; c != nil {
		fmt.Fprintf(w, "Order %s confirmed (%s, ref %s)\n", c.OrderID, c.TotalLabel, c.Reference)
		fmt.Fprintf(w, "Track your delivery: %s\n", c.TrackingLink)
		return
	}
	state := "disabled"
	if v.ButtonEnabled {
		state = "enabled"
	}
	fmt.Fprintf(w, "[%s] (%s)\n", v.ButtonLabel, state)
}
