package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/robot"
)

type SendCommand struct {
	Frame bool `long:"frame" description:"Treat the arguments as seven angles and send them as a move"`
	Args  struct {
		Lines []string `positional-arg-name:"line" description:"Command lines, e.g. \"band run\""`
	} `positional-args:"yes" required:"yes"`
}

func (c *SendCommand) Execute(args []string) error {
	return withLink(func(ctx context.Context, ctrl *console.Controller) error {
		sess := ctrl.Session()
		if c.Frame {
			p, ok := robot.ParseFrame(strings.Join(c.Args.Lines, " "))
			if !ok {
				return fmt.Errorf("--frame needs %d angles", robot.ChannelCount)
			}
			return finish("Move to "+p.String(), sess.Engine().GoTo(ctx, p))
		}
		for _, line := range c.Args.Lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := sess.Engine().SendCommand(ctx, line); err != nil {
				return err
			}
			fmt.Println(dimStyle.Render("> " + line))
		}
		return nil
	})
}
