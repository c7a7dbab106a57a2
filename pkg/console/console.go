// Package console runs an operator session against a live link: it
// connects, watches inbound lines for sensor triggers, feeds decoded QR
// text to the autonomous controller, and publishes status and log lines
// for a front end.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/sppark/pkg/auto"
	"github.com/gwillem/sppark/pkg/link"
	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/robot"
	"github.com/gwillem/sppark/pkg/session"
)

// Status is a point-in-time view of the session for display.
type Status struct {
	Posture   robot.Posture
	Label     string
	Connected bool
	Busy      bool
	Counts    session.Counts
	Auto      auto.State
	Timestamp time.Time
}

// Link is a connection the console can attach to the engine and close.
type Link interface {
	motion.Link
	Close() error
}

// LineSource is implemented by links that report inbound lines.
type LineSource interface {
	Lines() <-chan string
}

// Dialer opens the link described by cfg.
type Dialer func(ctx context.Context, cfg *robot.Config, logger *slog.Logger) (Link, error)

// Config holds configuration for the controller.
type Config struct {
	Robot *robot.Config
	// Store persists the session. Nil disables autosave and reload.
	Store  *session.Store
	Logger *slog.Logger
	// Dial defaults to DialLink.
	Dial Dialer
}

// Controller wires a session to its link and front end.
type Controller struct {
	sess    *session.Session
	robot   *robot.Config
	store   *session.Store
	dial    Dialer
	logger  *slog.Logger
	trigger *regexp.Regexp

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	link       Link
	linkCancel context.CancelFunc
	linkDone   chan struct{}
	lastSend   time.Time
	pending    *time.Timer
	closed     bool

	stateCh chan Status
	logCh   chan string
}

// NewController creates a controller for sess. It does not connect.
func NewController(cfg Config, sess *session.Session) (*Controller, error) {
	if cfg.Robot == nil {
		cfg.Robot = robot.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Dial == nil {
		cfg.Dial = DialLink
	}

	pattern := cfg.Robot.TriggerPattern
	if pattern == "" {
		pattern = robot.DefaultTriggerPattern
	}
	trigger, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("trigger pattern: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		sess:    sess,
		robot:   cfg.Robot,
		store:   cfg.Store,
		dial:    cfg.Dial,
		logger:  cfg.Logger,
		trigger: trigger,
		ctx:     ctx,
		cancel:  cancel,
		stateCh: make(chan Status, 1),
		logCh:   make(chan string, 10),
	}

	sess.SetHooks(session.Hooks{
		OnPointSaved: func(list session.ListName, p robot.Point) {
			c.log("Saved %s point %q: %s", list.Label(), p.Name, p.Posture)
		},
		OnCycleStateChanged: func(st auto.State) {
			c.logger.Info("cycle state", "phase", st.Phase, "label", st.Label())
			if st.Err != nil {
				c.log("Cycle error: %v", st.Err)
			}
			c.publish()
		},
		OnFrameSent: func(string, robot.Posture) {
			c.publish()
		},
		OnProgress: func(label string, index, total int) {
			c.log("%s %d/%d", label, index, total)
		},
		OnChanged: c.autosave,
	})
	return c, nil
}

// Session returns the controlled session.
func (c *Controller) Session() *session.Session { return c.sess }

// States returns a channel that receives status updates. Only the newest
// status is kept.
func (c *Controller) States() <-chan Status {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Status returns the current status.
func (c *Controller) Status() Status {
	e := c.sess.Engine()
	return Status{
		Posture:   e.Current(),
		Label:     c.sess.Status(),
		Connected: e.Connected(),
		Busy:      e.Busy(),
		Counts:    c.sess.Counts(),
		Auto:      c.sess.Auto().State(),
		Timestamp: time.Now(),
	}
}

func (c *Controller) log(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.Info(text)
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), text)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

func (c *Controller) publish() {
	s := c.Status()
	select {
	case c.stateCh <- s:
	default:
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

// DialLink opens a serial line link or a servo-bus arm as selected by
// cfg.Link.
func DialLink(ctx context.Context, cfg *robot.Config, logger *slog.Logger) (Link, error) {
	switch cfg.Link {
	case robot.LinkServoBus:
		arm, err := robot.NewArm(cfg.Port, cfg.BaudRate, cfg.Calibration)
		if err != nil {
			return nil, err
		}
		return arm, nil
	case robot.LinkSerial, "":
		s, err := link.Open(ctx, link.Options{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown link %q", cfg.Link)
	}
}

// Connect opens the configured link, attaches it and sends the hello
// command. Inbound lines are watched for triggers until Disconnect.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("console closed")
	}
	if c.link != nil {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	l, err := c.dial(ctx, c.robot, c.logger.With("component", "link"))
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.robot.Port, err)
	}

	linkCtx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.mu.Lock()
	if c.closed || c.link != nil {
		c.mu.Unlock()
		cancel()
		_ = l.Close()
		return errors.New("connect: console closed or already connected")
	}
	c.link = l
	c.linkCancel = cancel
	c.linkDone = done
	c.mu.Unlock()

	c.sess.Engine().Attach(l)
	c.log("Connected to %s (%s)", c.robot.Port, c.linkKind())

	if src, ok := l.(LineSource); ok {
		go c.readLines(linkCtx, src.Lines(), done)
	} else {
		close(done)
	}

	if hello := strings.TrimSpace(c.robot.HelloCommand); hello != "" && c.linkKind() == robot.LinkSerial {
		if err := c.sess.Engine().SendCommand(ctx, hello); err != nil {
			c.log("Hello failed: %v", err)
		}
	}
	c.publish()
	return nil
}

func (c *Controller) linkKind() robot.LinkKind {
	if c.robot.Link == "" {
		return robot.LinkSerial
	}
	return c.robot.Link
}

// Connected reports whether a link is attached.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// Disconnect detaches and closes the link. A running activity fails on
// its next frame.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	l, cancel, done := c.link, c.linkCancel, c.linkDone
	c.link, c.linkCancel, c.linkDone = nil, nil, nil
	c.mu.Unlock()
	if l == nil {
		return nil
	}

	c.sess.Engine().Detach()
	cancel()
	err := l.Close()
	<-done
	c.log("Disconnected")
	c.publish()
	return err
}

func (c *Controller) readLines(ctx context.Context, lines <-chan string, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				c.linkLost()
				return
			}
			c.handleLine(line)
		}
	}
}

// linkLost runs when the remote end closes the link on its own.
func (c *Controller) linkLost() {
	c.mu.Lock()
	l := c.link
	c.link, c.linkCancel, c.linkDone = nil, nil, nil
	c.mu.Unlock()
	if l == nil {
		return
	}
	c.sess.Engine().Detach()
	_ = l.Close()
	c.log("Link closed by device")
	c.publish()
}

func (c *Controller) handleLine(line string) {
	c.logger.Debug("received", "line", line)
	if !c.trigger.MatchString(line) {
		return
	}
	c.log("Trigger: %s", line)
	c.Go("auto cycle", c.sess.Auto().Trigger)
}

// Go runs fn in the background and logs its outcome. Precondition
// failures are reported as notices.
func (c *Controller) Go(name string, fn func(ctx context.Context) error) {
	c.spawn(func() {
		c.report(name, fn(c.ctx))
	})
}

// spawn runs fn on a tracked goroutine unless the controller is closed.
func (c *Controller) spawn(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

func (c *Controller) report(name string, err error) {
	switch {
	case err == nil:
		c.logger.Debug("done", "action", name)
	case motion.IsPrecondition(err):
		c.log("%s: %v", name, err)
	case errors.Is(err, motion.ErrStopped):
		c.log("%s stopped", name)
	default:
		c.logger.Error("action failed", "action", name, "error", err)
		c.log("%s failed: %v", name, err)
	}
	c.publish()
}

// Jog sets one channel from manual input. When send-on-release is off,
// the posture is sent at most once per throttle interval.
func (c *Controller) Jog(ch robot.Channel, deg int) bool {
	e := c.sess.Engine()
	if !e.Jog(ch, deg) {
		return false
	}
	c.publish()
	st := e.Settings()
	if st.SendOnRelease || !e.Connected() {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil || c.closed {
		return true
	}
	wait := st.Throttle - time.Since(c.lastSend)
	if wait < 0 {
		wait = 0
	}
	c.pending = time.AfterFunc(wait, c.throttledSend)
	return true
}

func (c *Controller) throttledSend() {
	c.mu.Lock()
	c.pending = nil
	c.lastSend = time.Now()
	c.mu.Unlock()
	c.Go("send", c.sess.SendNow)
}

// Release ends a manual adjustment. With send-on-release on, the posture
// is sent now.
func (c *Controller) Release() {
	e := c.sess.Engine()
	if !e.Settings().SendOnRelease || !e.Connected() || e.Busy() {
		return
	}
	c.Go("send", c.sess.SendNow)
}

// FeedPayloads reads decoded QR text from r, one payload per line, until
// r ends or ctx is cancelled.
func (c *Controller) FeedPayloads(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		c.OfferText(text)
	}
	return scanner.Err()
}

// OfferText hands one decoded QR text to the autonomous controller.
func (c *Controller) OfferText(text string) {
	c.spawn(func() {
		ok, err := c.sess.Auto().OfferText(c.ctx, text)
		if !ok {
			c.log("QR ignored: %q", text)
			return
		}
		if p, has := c.sess.Auto().LastPayload(); has {
			c.log("QR payload %s: %s", p.ID, p.Posture)
		}
		c.report("auto cycle", err)
	})
}

// LoadState restores the session from the store. A missing file is not
// an error.
func (c *Controller) LoadState() error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	c.sess.Restore(snap)
	c.log("Loaded state from %s", c.store.Path())
	return nil
}

// SaveState writes the session to the store.
func (c *Controller) SaveState() error {
	if c.store == nil {
		return nil
	}
	return c.store.Save(c.sess.Snapshot())
}

func (c *Controller) autosave() {
	if err := c.SaveState(); err != nil {
		c.log("Save failed: %v", err)
	}
}

// WatchState reloads the session when the state file changes on disk.
// Changes are ignored while an activity is running.
func (c *Controller) WatchState(delay time.Duration) {
	if c.store == nil {
		return
	}
	c.spawn(func() {
		err := c.store.Watch(c.ctx, delay, func(snap session.Snapshot) {
			if c.sess.RestoreIdle(snap) {
				c.log("Reloaded state from %s", c.store.Path())
				c.publish()
				return
			}
			c.log("State file changed while busy; not reloaded")
		})
		if err != nil {
			c.log("Watch failed: %v", err)
		}
	})
}

// Close stops all activity, disconnects, waits for background work and
// saves the session.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()

	c.sess.Stop()
	c.cancel()
	var errs []error
	if err := c.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	c.wg.Wait()
	if err := c.SaveState(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
