package widget

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/cbhub/internal/pricing"
)

// ConsoleOpener stands in for the hosted popup in a terminal: it prints the
// payment details and reads the provider reference, or an empty line to cancel.
type ConsoleOpener struct {
	In  *bufio.Reader
	Out io.Writer
}

// Open implements Opener.
func (c ConsoleOpener) Open(ctx context.Context, setup Setup, cb Callbacks) error {
	if c.In == nil || c.Out == nil {
		return fmt.Errorf("console opener not configured")
	}
	fmt.Fprintf(c.Out, "Paystack payment of %s for %s (ref %s)\n",
		pricing.Format(setup.Currency, setup.Amount), setup.Email, setup.Ref)
	fmt.Fprint(c.Out, "Enter the reference shown after paying, or press enter to cancel: ")
	go func() {
		line, err := c.In.ReadString('\n')
		if ctx.Err() != nil {
			return
		}
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			cb.OnClose()
			return
		}
		if line == "" {
			cb.OnClose()
			return
		}
		cb.OnSuccess(line)
	}()
	return nil
}
