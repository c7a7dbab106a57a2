package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/qr"
)

type AutoCommand struct {
	QR      string `long:"qr" default:"-" description:"File or FIFO with decoded QR text, one payload per line (- for stdin)"`
	Payload string `long:"payload" description:"Run a single cycle with this payload and exit"`
}

func (c *AutoCommand) Execute(args []string) error {
	return withLink(func(ctx context.Context, ctrl *console.Controller) error {
		a := ctrl.Session().Auto()

		if c.Payload != "" {
			p, ok := qr.Parse(c.Payload)
			if !ok {
				return fmt.Errorf("invalid payload %q", c.Payload)
			}
			if err := a.OfferPayload(ctx, p); err != nil {
				return err
			}
			return finish("Cycle "+p.ID, a.RunLast(ctx))
		}

		r, closeFn, err := openInput(c.QR)
		if err != nil {
			return err
		}
		defer closeFn()

		a.Arm()
		fmt.Println(headerStyle.Render("Armed") + dimStyle.Render(" waiting for sensor triggers, press Ctrl+C to stop"))

		go func() {
			if err := ctrl.FeedPayloads(ctx, r); err != nil && !errors.Is(err, os.ErrClosed) {
				fmt.Fprintln(os.Stderr, errorStyle.Render("QR input: "+err.Error()))
			}
		}()

		<-ctx.Done()
		a.Disarm()
		fmt.Println(dimStyle.Render("Stopped, last state: " + a.State().Label()))
		return nil
	})
}

// openInput opens path for reading; "-" is stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
