package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gwillem/sppark/pkg/motion/motiontest"
	"github.com/gwillem/sppark/pkg/robot"
)

func newTestEngine(t *testing.T, s Settings) (*Engine, *motiontest.Link, *motiontest.Clock) {
	t.Helper()
	link := &motiontest.Link{}
	clock := &motiontest.Clock{}
	e := NewEngine(Options{Clock: clock, Settings: s})
	e.Attach(link)
	return e, link, clock
}

func points(postures ...robot.Posture) []robot.Point {
	out := make([]robot.Point, 0, len(postures))
	for _, p := range postures {
		out = append(out, robot.NewPoint("", p))
	}
	return out
}

func TestEngine_InitialPosture(t *testing.T) {
	e := NewEngine(Options{})
	if got := e.Current(); got != robot.Uniform(90) {
		t.Errorf("initial posture = %v, want all 90", got)
	}
	if e.Connected() {
		t.Error("new engine reports connected")
	}
	if got := e.Settings(); got != DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", got)
	}
}

func TestEngine_SetAngleClamps(t *testing.T) {
	e := NewEngine(Options{})
	e.SetAngle(robot.Base, 500)
	e.SetAngle(robot.Gripper, -3)
	e.SetAngle(robot.Channel(7), 10)

	got := e.Current()
	if got[robot.Base] != 180 || got[robot.Gripper] != 0 {
		t.Errorf("posture = %v, want CH0=180 CH6=0", got)
	}
	for i, v := range got {
		if v < robot.MinAngle || v > robot.MaxAngle {
			t.Errorf("channel %d out of range: %d", i, v)
		}
	}
}

func TestEngine_SetPostureClamps(t *testing.T) {
	e := NewEngine(Options{})
	e.SetPosture(robot.Posture{-1, 200, 3, 4, 5, 6, 7})
	if got, want := e.Current(), (robot.Posture{0, 180, 3, 4, 5, 6, 7}); got != want {
		t.Errorf("posture = %v, want %v", got, want)
	}
}

func TestSettings_Clamped(t *testing.T) {
	got := Settings{Throttle: time.Millisecond, InterpSteps: 900, Pause: time.Hour}.Clamped()
	want := Settings{Throttle: MinThrottle, InterpSteps: MaxInterpSteps, Pause: MaxPause}
	if got != want {
		t.Errorf("Clamped = %+v, want %+v", got, want)
	}
	if got := (Settings{Throttle: 3 * time.Second, InterpSteps: -2, Pause: -time.Second}).Clamped(); got.Throttle != MaxThrottle || got.InterpSteps != 1 || got.Pause != 0 {
		t.Errorf("Clamped = %+v", got)
	}
}

func TestRun_NotConnected(t *testing.T) {
	e := NewEngine(Options{Clock: &motiontest.Clock{}})
	called := false
	err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Run = %v, want ErrNotConnected", err)
	}
	if !IsPrecondition(err) {
		t.Error("ErrNotConnected is not a precondition error")
	}
	if called {
		t.Error("activity ran without a link")
	}
}

func TestRun_RejectsSecondActivity(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())

	var inner error
	err := e.Run(context.Background(), ActivityAuto, func(ctx context.Context) error {
		if got := e.Holder(); got != ActivityAuto {
			t.Errorf("Holder = %v, want auto", got)
		}
		inner = e.PlaySequence(ctx, points(robot.Uniform(10), robot.Uniform(20)), "Ida")
		if err := e.SendNow(ctx); !errors.Is(err, ErrBusy) {
			t.Errorf("SendNow while busy = %v, want ErrBusy", err)
		}
		if err := e.RunProgramLoop(ctx, points(robot.Uniform(10), robot.Uniform(20)), "PROG"); !errors.Is(err, ErrBusy) {
			t.Errorf("RunProgramLoop while busy = %v, want ErrBusy", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer Run: %v", err)
	}
	if !errors.Is(inner, ErrBusy) {
		t.Errorf("PlaySequence while busy = %v, want ErrBusy", inner)
	}
	if lines := link.Lines(); len(lines) != 0 {
		t.Errorf("rejected activities sent %v", lines)
	}
	if e.Busy() {
		t.Error("lock still held after Run returned")
	}
}

func TestJog_IgnoredWhileBusy(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultSettings())

	if !e.Jog(robot.Elbow, 45) {
		t.Fatal("Jog rejected while idle")
	}
	_ = e.Run(context.Background(), ActivitySequence, func(ctx context.Context) error {
		if e.Jog(robot.Elbow, 10) {
			t.Error("Jog accepted while a sequence holds the lock")
		}
		if e.Load(robot.Uniform(0)) {
			t.Error("Load accepted while a sequence holds the lock")
		}
		return nil
	})
	if got := e.Current()[robot.Elbow]; got != 45 {
		t.Errorf("elbow = %d, want 45", got)
	}
}

func TestJog_NoWriteAfterActivityStarts(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultSettings())

	done := make(chan struct{})
	jogged := make(chan struct{})
	go func() {
		defer close(jogged)
		for deg := 0; ; deg = (deg + 1) % 180 {
			select {
			case <-done:
				return
			default:
				e.Jog(robot.Base, deg)
				e.Load(robot.Uniform(deg))
			}
		}
	}()

	for range 50 {
		_ = e.Run(context.Background(), ActivitySequence, func(ctx context.Context) error {
			before := e.Current()
			time.Sleep(time.Millisecond)
			if got := e.Current(); got != before {
				t.Errorf("posture changed during activity: %v -> %v", before, got)
			}
			return nil
		})
	}
	close(done)
	<-jogged
}

// cancellingLink stops the engine mid-send and reports the context error,
// the way a real port does when its write is interrupted.
type cancellingLink struct{ e *Engine }

func (l cancellingLink) SendLine(ctx context.Context, line string) error {
	l.e.Stop()
	<-ctx.Done()
	return ctx.Err()
}

func TestSend_ContextErrors(t *testing.T) {
	tests := []struct {
		name        string
		link        func(e *Engine) Link
		wantStopped bool
	}{
		{
			name:        "stopped during send",
			link:        func(e *Engine) Link { return cancellingLink{e} },
			wantStopped: true,
		},
		{
			name: "link reports canceled on live context",
			link: func(*Engine) Link {
				l := &motiontest.Link{}
				l.FailAt(1, context.Canceled)
				return l
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Options{Clock: &motiontest.Clock{}})
			e.Attach(tt.link(e))

			err := e.SendNow(context.Background())
			var te *TransportError
			isTransport := errors.As(err, &te)
			if tt.wantStopped {
				if !errors.Is(err, ErrStopped) || isTransport {
					t.Errorf("SendNow = %v, want ErrStopped without TransportError", err)
				}
			} else if errors.Is(err, ErrStopped) || !isTransport {
				t.Errorf("SendNow = %v, want TransportError", err)
			}
			if e.Busy() {
				t.Error("lock held after send failure")
			}
		})
	}
}

func TestRun_ReleasesLockOnTransportError(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())
	link.FailAt(1, errors.New("write failed"))

	err := e.SendNow(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("SendNow = %v, want TransportError", err)
	}
	if IsPrecondition(err) {
		t.Error("transport error classified as precondition")
	}
	if e.Busy() {
		t.Error("lock held after transport error")
	}
	if err := e.SendNow(context.Background()); err != nil {
		t.Errorf("SendNow after failure = %v", err)
	}
}

func TestDetach_FailsRunningActivity(t *testing.T) {
	e, link, _ := newTestEngine(t, Settings{InterpSteps: 5})
	link.OnSend = func(n int, line string) {
		if n == 2 {
			e.Detach()
		}
	}

	err := e.GoTo(context.Background(), robot.Uniform(0))
	if !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("GoTo = %v, want ErrLinkClosed", err)
	}
	if IsPrecondition(err) {
		t.Error("detached link mid-activity classified as precondition")
	}
	if got := len(link.Lines()); got != 2 {
		t.Errorf("sent %d frames, want 2", got)
	}
}

func TestSendCommand(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())
	if err := e.SendCommand(context.Background(), "band stop"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got := link.Lines(); len(got) != 1 || got[0] != "band stop" {
		t.Errorf("lines = %v", got)
	}
	if got := e.Current(); got != robot.Uniform(90) {
		t.Errorf("SendCommand changed posture to %v", got)
	}

	e.Detach()
	if err := e.SendCommand(context.Background(), "show"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendCommand detached = %v, want ErrNotConnected", err)
	}
}

func TestStop_NoActivityIsNoop(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultSettings())
	e.Stop()
	if e.Cancel(ActivityAuto) {
		t.Error("Cancel reported success with nothing running")
	}
	if err := e.SendNow(context.Background()); err != nil {
		t.Errorf("SendNow after idle Stop = %v", err)
	}
}

func TestCancel_OnlyMatchingActivity(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultSettings())
	_ = e.Run(context.Background(), ActivitySequence, func(ctx context.Context) error {
		if e.Cancel(ActivityAuto) {
			t.Error("Cancel(auto) stopped a sequence")
		}
		if ctx.Err() != nil {
			t.Error("sequence context cancelled")
		}
		if !e.Cancel(ActivitySequence) {
			t.Error("Cancel(sequence) failed")
		}
		if ctx.Err() == nil {
			t.Error("sequence context not cancelled")
		}
		return nil
	})
}

func TestHooks_FrameAndProgress(t *testing.T) {
	e, _, _ := newTestEngine(t, Settings{InterpSteps: 1})
	var frames []string
	var progress []int
	e.SetHooks(Hooks{
		OnFrameSent: func(line string, p robot.Posture) { frames = append(frames, line) },
		OnProgress:  func(label string, i, n int) { progress = append(progress, i) },
	})

	if err := e.PlaySequence(context.Background(), points(robot.Uniform(1), robot.Uniform(2)), "Ida"); err != nil {
		t.Fatalf("PlaySequence: %v", err)
	}
	if len(frames) != 2 || frames[1] != "2 2 2 2 2 2 2" {
		t.Errorf("frames = %v", frames)
	}
	if len(progress) != 2 || progress[0] != 1 || progress[1] != 2 {
		t.Errorf("progress = %v", progress)
	}
}
