// Package motion owns the commanded posture and turns target postures
// into frames on the link. It runs one motion activity at a time.
package motion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/sppark/pkg/robot"
)

// Link sends one command line to the controller. Implementations add the
// line terminator.
type Link interface {
	SendLine(ctx context.Context, line string) error
}

// Hooks observe engine output. Hooks run on the activity goroutine and
// must not call back into activities.
type Hooks struct {
	OnFrameSent func(line string, p robot.Posture)
	OnProgress  func(label string, index, total int)
}

// Options configure a new Engine.
type Options struct {
	Clock    Clock
	Logger   *slog.Logger
	Settings Settings
}

// Engine holds the posture model and the activity lock. It is safe for
// concurrent use; activities themselves are serialized by the lock.
type Engine struct {
	clock  Clock
	logger *slog.Logger
	lock   Lock

	mu       sync.Mutex
	link     Link
	current  robot.Posture
	settings Settings
	hooks    Hooks
	cancel   context.CancelFunc
}

// NewEngine creates an engine with every channel at 90 degrees and no link.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Settings == (Settings{}) {
		opts.Settings = DefaultSettings()
	}
	return &Engine{
		clock:    opts.Clock,
		logger:   opts.Logger,
		current:  robot.Uniform(90),
		settings: opts.Settings.Clamped(),
	}
}

// Attach connects the engine to l.
func (e *Engine) Attach(l Link) {
	e.mu.Lock()
	e.link = l
	e.mu.Unlock()
}

// Detach disconnects the link. A running activity fails on its next send.
func (e *Engine) Detach() {
	e.mu.Lock()
	e.link = nil
	e.mu.Unlock()
}

// Connected reports whether a link is attached.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.link != nil
}

// SetHooks replaces the engine hooks.
func (e *Engine) SetHooks(h Hooks) {
	e.mu.Lock()
	e.hooks = h
	e.mu.Unlock()
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetSettings stores s after clamping.
func (e *Engine) SetSettings(s Settings) {
	e.mu.Lock()
	e.settings = s.Clamped()
	e.mu.Unlock()
}

// Current returns a snapshot of the commanded posture.
func (e *Engine) Current() robot.Posture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SetAngle clamps deg and stores it on channel c. Invalid channels are
// ignored.
func (e *Engine) SetAngle(c robot.Channel, deg int) {
	e.mu.Lock()
	e.current = e.current.With(c, deg)
	e.mu.Unlock()
}

// SetPosture replaces the whole posture at once.
func (e *Engine) SetPosture(p robot.Posture) {
	e.mu.Lock()
	e.current = p.Clamped()
	e.mu.Unlock()
}

// Jog is the manual input path: it sets one channel unless an activity
// holds the lock, in which case the input is dropped and Jog returns false.
func (e *Engine) Jog(c robot.Channel, deg int) bool {
	if !c.Valid() {
		return false
	}
	// Run takes the lock under e.mu, so holding e.mu here keeps an
	// activity from starting between the check and the write.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lock.Holder() != ActivityNone {
		return false
	}
	e.current = e.current.With(c, deg)
	return true
}

// Load replaces the posture without sending it, unless an activity holds
// the lock.
func (e *Engine) Load(p robot.Posture) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lock.Holder() != ActivityNone {
		return false
	}
	e.current = p.Clamped()
	return true
}

// Busy reports whether any activity holds the lock.
func (e *Engine) Busy() bool {
	return e.lock.Holder() != ActivityNone
}

// Holder returns the activity holding the lock.
func (e *Engine) Holder() Activity {
	return e.lock.Holder()
}

// Run executes fn as activity a. It fails with ErrNotConnected or ErrBusy
// before fn is called; otherwise fn runs with a context that Stop
// cancels, and the lock is released when fn returns.
func (e *Engine) Run(ctx context.Context, a Activity, fn func(ctx context.Context) error) error {
	e.mu.Lock()
	if e.link == nil {
		e.mu.Unlock()
		return ErrNotConnected
	}
	if !e.lock.TryAcquire(a) {
		e.mu.Unlock()
		return ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
		e.lock.Release(a)
	}()

	e.logger.Debug("activity started", "activity", a)
	err := fn(runCtx)
	e.logger.Debug("activity finished", "activity", a, "error", err)
	return err
}

// Stop cancels the running activity, if any. The activity notices at its
// next frame, point or delay.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancel stops the running activity only if it is a, and reports whether
// it did.
func (e *Engine) Cancel(a Activity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lock.Holder() != a || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Sleep waits for d on the engine clock, returning early with ErrStopped
// if ctx is cancelled.
func (e *Engine) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, e.clock, d)
}

// SendCommand sends a non-motion line (raw console input, conveyor
// commands). It does not take the lock.
func (e *Engine) SendCommand(ctx context.Context, line string) error {
	if !e.Connected() {
		return ErrNotConnected
	}
	return e.send(ctx, line)
}

// SendNow sends the current posture as a single manual frame.
func (e *Engine) SendNow(ctx context.Context) error {
	return e.Run(ctx, ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, e.Current(), 1)
	})
}

// GoTo moves to target as a manual activity using the configured
// interpolation steps.
func (e *Engine) GoTo(ctx context.Context, target robot.Posture) error {
	return e.Run(ctx, ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, target, e.Settings().InterpSteps)
	})
}

func (e *Engine) send(ctx context.Context, line string) error {
	e.mu.Lock()
	l := e.link
	e.mu.Unlock()
	if l == nil {
		return &TransportError{Line: line, Err: ErrLinkClosed}
	}
	if err := l.SendLine(ctx, line); err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return stopped(ctx)
		}
		return &TransportError{Line: line, Err: err}
	}
	return nil
}

func (e *Engine) commit(p robot.Posture) {
	e.mu.Lock()
	e.current = p
	onFrame := e.hooks.OnFrameSent
	e.mu.Unlock()
	if onFrame != nil {
		onFrame(p.Frame(), p)
	}
}

func (e *Engine) progress(label string, index, total int) {
	e.mu.Lock()
	onProgress := e.hooks.OnProgress
	e.mu.Unlock()
	if onProgress != nil {
		onProgress(label, index, total)
	}
}
