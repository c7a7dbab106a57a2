package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/sppark/pkg/link"
	"github.com/gwillem/sppark/pkg/robot"
)

type SetupCommand struct {
	Port string `long:"port" description:"Serial port (skips the picker)"`
	Link string `long:"link" choice:"serial" choice:"servobus" description:"Link type (skips the picker)"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("sppark setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExistsAt(opts.Config) {
		if existing, err := robot.LoadConfigFrom(opts.Config); err == nil {
			cfg = existing
		}
	}

	port := c.Port
	if port == "" {
		var err error
		if port, err = pickPort(cfg.Port); err != nil {
			return err
		}
	}
	cfg.Port = port

	kind := robot.LinkKind(c.Link)
	if kind == "" {
		var err error
		if kind, err = pickLink(cfg.Link); err != nil {
			return err
		}
	}
	cfg.Link = kind

	switch kind {
	case robot.LinkServoBus:
		fmt.Printf("Scanning servo bus on %s...\n", port)
		ids, err := robot.ScanBus(context.Background(), port)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no servos answered on %s", port)
		}
		fmt.Printf("  Found servos %v\n", ids)
		cfg.BaudRate = robot.BusBaudRate
		cfg.Calibration = robot.CalibrationForIDs(ids)
	default:
		baud, err := askBaud(cfg.BaudRate)
		if err != nil {
			return err
		}
		cfg.BaudRate = baud
		cfg.Calibration = nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save %s: %w", opts.Config, err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the console with: " + headerStyle.Render("sppark console"))
	return nil
}

func pickPort(current string) (string, error) {
	ports, err := link.DescribePorts()
	if err != nil {
		// Detailed enumeration is not available everywhere.
		names, err := link.Ports()
		if err != nil {
			return "", fmt.Errorf("list ports: %w", err)
		}
		for _, n := range names {
			ports = append(ports, link.PortInfo{Name: n})
		}
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports found; make sure the controller is connected")
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p.String(), p.Name))
	}

	port := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the arm on?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return port, nil
}

func pickLink(current robot.LinkKind) (robot.LinkKind, error) {
	kind := string(current)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How is the arm connected?").
				Options(
					huh.NewOption("Controller board (text line protocol)", string(robot.LinkSerial)),
					huh.NewOption("Feetech servo bus (direct)", string(robot.LinkServoBus)),
				).
				Value(&kind),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return robot.LinkKind(kind), nil
}

func askBaud(current int) (int, error) {
	text := strconv.Itoa(current)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Baud rate").
				Value(&text).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return 0, err
	}
	return strconv.Atoi(text)
}
