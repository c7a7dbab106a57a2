package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/session"
)

type PlayCommand struct {
	Args struct {
		List string `positional-arg-name:"list" description:"outbound, return, program or both"`
	} `positional-args:"yes" required:"yes"`
}

func (c *PlayCommand) Execute(args []string) error {
	return withLink(func(ctx context.Context, ctrl *console.Controller) error {
		sess := ctrl.Session()
		if c.Args.List == "both" {
			return finish("Outbound + Return", sess.PlayBoth(ctx))
		}
		list, err := session.ParseListName(c.Args.List)
		if err != nil {
			return err
		}
		return finish(list.Label(), sess.Play(ctx, list))
	})
}

type ProgramCommand struct {
	Loop bool `short:"l" long:"loop" description:"Repeat until interrupted"`
}

func (c *ProgramCommand) Execute(args []string) error {
	return withLink(func(ctx context.Context, ctrl *console.Controller) error {
		if c.Loop {
			fmt.Println(dimStyle.Render("Looping program, press Ctrl+C to stop"))
			return finish("Program loop", ctrl.Session().LoopProgram(ctx))
		}
		return finish("Program", ctrl.Session().RunProgram(ctx))
	})
}

// finish prints the outcome of an activity. A stop requested by the
// operator is not an error.
func finish(name string, err error) error {
	switch {
	case err == nil:
		fmt.Println(successStyle.Render(name + " done"))
		return nil
	case errors.Is(err, motion.ErrStopped):
		fmt.Println(dimStyle.Render(name + " stopped"))
		return nil
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}
