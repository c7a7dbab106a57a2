package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jessevdk/go-flags"

	"github.com/gwillem/sppark/pkg/link"
	"github.com/gwillem/sppark/pkg/robot"
)

type Options struct {
	BaudRate int           `short:"b" long:"baud" default:"115200" description:"Baud rate for the line protocol"`
	Hello    string        `long:"hello" default:"show" description:"Command sent to each port"`
	Wait     time.Duration `short:"w" long:"wait" default:"1s" description:"How long to collect replies per port"`
	Bus      bool          `long:"bus" description:"Scan for Feetech servos instead of talking the line protocol"`
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	fmt.Println(headerStyle.Render("sppark port probe"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	ports, err := link.DescribePorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the controller is connected and powered on.")
		os.Exit(1)
	}

	rows := make([][]string, 0, len(ports))
	found := 0
	for _, p := range ports {
		fmt.Println(dimStyle.Render("  probing " + p.Name))
		var reply string
		var ok bool
		if opts.Bus {
			reply, ok = probeBus(p.Name)
		} else {
			reply, ok = probeLine(p.Name, opts)
		}
		if ok {
			found++
		}
		rows = append(rows, []string{p.String(), reply})
	}
	fmt.Println()

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Reply").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 1 && row >= 0 && row < len(rows) && !strings.HasPrefix(rows[row][1], "(") {
				return okStyle
			}
			return cellStyle
		})
	fmt.Println(t.Render())

	if found == 0 {
		fmt.Println()
		fmt.Println("No port answered. Check the cable and the baud rate.")
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println("Save the port with: " + headerStyle.Render("sppark setup --port <port>"))
}

// probeLine sends the hello command and collects reply lines.
func probeLine(port string, opts Options) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.Wait+time.Second)
	defer cancel()

	s, err := link.Open(ctx, link.Options{
		Port:        port,
		BaudRate:    opts.BaudRate,
		OpenTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return "(" + err.Error() + ")", false
	}
	defer s.Close()

	if err := s.SendLine(ctx, opts.Hello); err != nil {
		return "(" + err.Error() + ")", false
	}

	var replies []string
	timeout := time.After(opts.Wait)
	for {
		select {
		case line, more := <-s.Lines():
			if !more {
				return summarize(replies)
			}
			replies = append(replies, line)
		case <-timeout:
			return summarize(replies)
		}
	}
}

func summarize(replies []string) (string, bool) {
	if len(replies) == 0 {
		return "(no reply)", false
	}
	const maxLines = 3
	if len(replies) > maxLines {
		replies = append(replies[:maxLines], fmt.Sprintf("... %d more", len(replies)-maxLines))
	}
	return strings.Join(replies, "\n"), true
}

// probeBus scans the port for servos.
func probeBus(port string) (string, bool) {
	ids, err := robot.ScanBus(context.Background(), port)
	if err != nil {
		return "(" + err.Error() + ")", false
	}
	if len(ids) == 0 {
		return "(no servos)", false
	}
	return fmt.Sprintf("servos %v", ids), true
}
