package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/robot"
	"github.com/gwillem/sppark/pkg/session"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load %s (run 'sppark setup' first): %w", opts.Config, err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Config, err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openConsole builds a session with its saved state. It does not connect.
func openConsole(cfg *robot.Config, logger *slog.Logger) (*console.Controller, error) {
	sess := session.New(session.Options{Logger: logger})
	ctrl, err := console.NewController(console.Config{
		Robot:  cfg,
		Store:  session.NewStore(cfg.StateFile, logger.With("component", "store")),
		Logger: logger,
	}, sess)
	if err != nil {
		return nil, err
	}
	if err := ctrl.LoadState(); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	return ctrl, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withSession runs fn against the saved session without a link.
func withSession(fn func(ctrl *console.Controller) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, err := openConsole(cfg, newLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer ctrl.Close()
	return fn(ctrl)
}

// withLink connects and runs fn. Interrupting the process cancels ctx,
// which stops the running activity.
func withLink(fn func(ctx context.Context, ctrl *console.Controller) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.IsConfigured() {
		return fmt.Errorf("no port configured in %s; run 'sppark setup' first", opts.Config)
	}
	ctrl, err := openConsole(cfg, newLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signalContext()
	defer stop()
	if err := ctrl.Connect(ctx); err != nil {
		return err
	}
	return fn(ctx, ctrl)
}
