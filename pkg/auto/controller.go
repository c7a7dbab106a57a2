// Package auto runs the autonomous pick-and-place cycle: a sensor trigger
// stops the conveyor, a scanned payload names the destination, and a fixed
// script moves the object there.
package auto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/qr"
	"github.com/gwillem/sppark/pkg/robot"
)

var (
	ErrNoPayload = motion.Precondition("no payload scanned yet")
	ErrNotReady  = motion.Precondition("autonomous cycle is busy or stopped")
)

// Controller is the cycle state machine. It shares the engine's activity
// lock with every other motion activity.
type Controller struct {
	engine *motion.Engine
	logger *slog.Logger

	mu       sync.Mutex
	cfg      Config
	state    State
	last     *qr.Payload
	cancel   context.CancelFunc
	onChange func(State)
}

// NewController creates a disarmed controller driving engine.
func NewController(engine *motion.Engine, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		engine: engine,
		logger: logger,
		cfg:    cfg.Clamped(),
	}
}

// Config returns the current configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the configuration. A running cycle keeps the
// configuration it started with.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg.Clamped()
	c.mu.Unlock()
}

// OnStateChange registers fn to receive every new state. fn runs outside
// the controller lock and may call back into the controller.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastPayload returns the most recent valid payload, if any.
func (c *Controller) LastPayload() (qr.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return qr.Payload{}, false
	}
	return *c.last, true
}

// Arm enables trigger handling. Arming during a cycle makes the
// controller return to Armed when the cycle completes.
func (c *Controller) Arm() {
	c.update(func(s State) State {
		switch s.Phase {
		case Disarmed, Stopped:
			return State{Phase: Armed}
		case Running:
			s.Rearm = true
		}
		return s
	})
}

// Disarm disables trigger handling and drops a pending wait. A running
// cycle finishes and then goes idle.
func (c *Controller) Disarm() {
	c.update(func(s State) State {
		if s.Phase == Running {
			s.Rearm = false
			return s
		}
		return State{Phase: Disarmed}
	})
}

// Stop cancels a running cycle and moves to Stopped from any phase.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.update(func(State) State { return State{Phase: Stopped} })
}

// Trigger handles a sensor event. It is dropped unless the controller is
// armed and no motion activity is running. The conveyor is stopped and
// the controller waits for a payload, or runs at once with the last one.
func (c *Controller) Trigger(ctx context.Context) error {
	c.mu.Lock()
	phase := c.state.Phase
	if (phase != Armed && phase != WaitingForPayload) || c.engine.Busy() {
		c.mu.Unlock()
		c.logger.Debug("trigger dropped", "phase", phase)
		return nil
	}
	c.state = State{Phase: WaitingForPayload}
	cfg, last := c.cfg, c.last
	c.mu.Unlock()
	c.notify()

	c.logger.Info("object detected, waiting for payload")
	c.conveyor(ctx, cfg.ConveyorStop)

	if last == nil {
		return nil
	}
	return c.run(ctx, *last, WaitingForPayload)
}

// OfferPayload stores p as the last payload and, if the controller is
// waiting and the engine is idle, runs the cycle with it.
func (c *Controller) OfferPayload(ctx context.Context, p qr.Payload) error {
	c.mu.Lock()
	c.last = &p
	waiting := c.state.Phase == WaitingForPayload && !c.engine.Busy()
	c.mu.Unlock()

	c.logger.Info("payload accepted", "id", p.ID, "angles", p.Posture.String())
	if !waiting {
		return nil
	}
	return c.run(ctx, p, WaitingForPayload)
}

// OfferText validates decoded text and offers the payload. It reports
// whether the text was a valid payload; invalid text is ignored.
func (c *Controller) OfferText(ctx context.Context, text string) (bool, error) {
	p, ok := qr.Parse(text)
	if !ok {
		c.logger.Debug("ignoring invalid payload text", "text", text)
		return false, nil
	}
	return true, c.OfferPayload(ctx, p)
}

// RunLast runs one cycle with the last payload. The controller returns
// to the armed state it started from.
func (c *Controller) RunLast(ctx context.Context) error {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		return ErrNoPayload
	}
	return c.run(ctx, *last, Disarmed, Armed)
}

// run executes one cycle if the controller is in one of the from phases.
// The phase is checked again once the engine lock is held, and nothing is
// published until then, so a refused run leaves no trace.
func (c *Controller) run(ctx context.Context, p qr.Payload, from ...Phase) error {
	c.mu.Lock()
	ready := slices.Contains(from, c.state.Phase)
	c.mu.Unlock()
	if !ready {
		return ErrNotReady
	}

	started := false
	err := c.engine.Run(ctx, motion.ActivityAuto, func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		c.mu.Lock()
		prev := c.state
		if !slices.Contains(from, prev.Phase) {
			c.mu.Unlock()
			return ErrNotReady
		}
		started = true
		cfg := c.cfg
		c.cancel = cancel
		c.state = State{Phase: Running, Payload: &p, Rearm: prev.Phase != Disarmed}
		c.mu.Unlock()
		c.notify()

		c.logger.Info("cycle started", "id", p.ID)
		return c.script(ctx, cfg, p)
	})
	if !started {
		return err
	}

	c.mu.Lock()
	c.cancel = nil
	if c.state.Phase != Running {
		// Stop() already moved on.
		c.mu.Unlock()
		return err
	}
	switch {
	case errors.Is(err, motion.ErrStopped):
		c.state = State{Phase: Stopped}
	case err != nil:
		c.state = State{Phase: Stopped, Err: err}
	case c.state.Rearm:
		c.state = State{Phase: Armed}
	default:
		c.state = State{Phase: Disarmed}
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		c.logger.Warn("cycle aborted", "id", p.ID, "error", err)
	} else {
		c.logger.Info("cycle completed", "id", p.ID)
	}
	return err
}

// script is the fixed pick-transport-place sequence.
func (c *Controller) script(ctx context.Context, cfg Config, p qr.Payload) error {
	steps := c.engine.Settings().InterpSteps
	to := func(pose robot.Posture) func() error {
		return func() error { return c.engine.MoveTo(ctx, pose, steps) }
	}
	dwell := func(d time.Duration) func() error {
		return func() error { return c.engine.Sleep(ctx, d) }
	}

	c.conveyor(ctx, cfg.ConveyorStop)
	for _, step := range []struct {
		name string
		run  func() error
	}{
		{"home", to(cfg.HomeOpen())},
		{"pick", to(cfg.PickOpen())},
		{"grip", to(cfg.Pick.WithGripper(cfg.GripClose))},
		{"dwell after grip", dwell(cfg.DwellGrip)},
		{"destination", to(p.Posture.WithGripper(cfg.GripClose))},
		{"release", to(p.Posture.WithGripper(cfg.GripOpen))},
		{"dwell after release", dwell(cfg.DwellRelease)},
		{"return home", to(cfg.HomeOpen())},
	} {
		c.logger.Debug("cycle step", "step", step.name)
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	c.conveyor(ctx, cfg.ConveyorRun)
	return nil
}

// conveyor sends a best-effort side command. Failures are logged only.
func (c *Controller) conveyor(ctx context.Context, cmd string) {
	if cmd == "" || ctx.Err() != nil {
		return
	}
	if err := c.engine.SendCommand(ctx, cmd); err != nil {
		c.logger.Debug("conveyor command failed", "command", cmd, "error", err)
	}
}

func (c *Controller) update(fn func(State) State) {
	c.mu.Lock()
	c.state = fn(c.state)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	s, fn := c.state, c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
