package main

import (
	"fmt"
	"os"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/session"
)

type ExportCommand struct {
	Format string `short:"f" long:"format" choice:"json" choice:"yaml" description:"Output format (default: from the file extension)"`
	Args   struct {
		File string `positional-arg-name:"file" description:"Output file (- or empty for stdout)"`
	} `positional-args:"yes"`
}

func (c *ExportCommand) Execute(args []string) error {
	return withSession(func(ctrl *console.Controller) error {
		format := transferFormat(c.Format, c.Args.File)
		e := ctrl.Session().Export()

		if c.Args.File == "" || c.Args.File == "-" {
			return session.WriteExport(os.Stdout, e, format)
		}
		f, err := os.Create(c.Args.File)
		if err != nil {
			return err
		}
		if err := session.WriteExport(f, e, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d outbound and %d return points to %s\n", len(e.Outbound), len(e.Return), c.Args.File)
		return nil
	})
}

type ImportCommand struct {
	Format string `short:"f" long:"format" choice:"json" choice:"yaml" description:"Input format (default: from the file extension)"`
	Args   struct {
		File string `positional-arg-name:"file" description:"Input file (- for stdin)"`
	} `positional-args:"yes" required:"yes"`
}

func (c *ImportCommand) Execute(args []string) error {
	return withSession(func(ctrl *console.Controller) error {
		r, closeFn, err := openInput(c.Args.File)
		if err != nil {
			return err
		}
		defer closeFn()

		e, err := session.ReadExport(r, transferFormat(c.Format, c.Args.File))
		if err != nil {
			return err
		}
		sess := ctrl.Session()
		sess.Import(e)
		if err := ctrl.SaveState(); err != nil {
			return err
		}
		counts := sess.Counts()
		fmt.Println(successStyle.Render(fmt.Sprintf("Imported %d outbound and %d return points", counts.Outbound, counts.Return)))
		return nil
	})
}

func transferFormat(flag, path string) session.Format {
	if flag != "" {
		if f, err := session.ParseFormat(flag); err == nil {
			return f
		}
	}
	return session.FormatFromPath(path)
}
