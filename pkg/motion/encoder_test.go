package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gwillem/sppark/pkg/robot"
)

func TestInterpolate(t *testing.T) {
	start := robot.Uniform(0)
	dst := robot.Posture{100, 0, 180, 90, 45, 10, 1}

	tests := []struct {
		k, steps int
		want     robot.Posture
	}{
		{1, 4, robot.Posture{25, 0, 45, 23, 11, 3, 0}},
		{2, 4, robot.Posture{50, 0, 90, 45, 23, 5, 1}},
		{3, 4, robot.Posture{75, 0, 135, 68, 34, 8, 1}},
		{4, 4, dst},
		{9, 4, dst},
	}
	for _, tt := range tests {
		if got := Interpolate(start, dst, tt.k, tt.steps); got != tt.want {
			t.Errorf("Interpolate(k=%d, steps=%d) = %v, want %v", tt.k, tt.steps, got, tt.want)
		}
	}
}

func TestInterpolate_Downward(t *testing.T) {
	start := robot.Uniform(90)
	dst := robot.Uniform(0)
	if got := Interpolate(start, dst, 1, 3); got != robot.Uniform(60) {
		t.Errorf("frame 1 = %v, want all 60", got)
	}
	if got := Interpolate(start, dst, 2, 3); got != robot.Uniform(30) {
		t.Errorf("frame 2 = %v, want all 30", got)
	}
}

func TestMoveTo_SingleStep(t *testing.T) {
	e, link, clock := newTestEngine(t, DefaultSettings())
	target := robot.Posture{10, 20, 30, 40, 50, 60, 70}

	err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, target, 1)
	})
	if err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := link.Lines(); len(got) != 1 || got[0] != "10 20 30 40 50 60 70" {
		t.Errorf("lines = %v", got)
	}
	if e.Current() != target {
		t.Errorf("posture = %v, want %v", e.Current(), target)
	}
	if got := clock.Waits(); len(got) != 0 {
		t.Errorf("single-step move waited %v", got)
	}
}

func TestMoveTo_ClampsTarget(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())
	err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, robot.Posture{-5, 300, 90, 90, 90, 90, 90}, 0)
	})
	if err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := link.Lines(); len(got) != 1 || got[0] != "0 180 90 90 90 90 90" {
		t.Errorf("lines = %v", got)
	}
}

func TestMoveTo_Interpolated(t *testing.T) {
	for _, steps := range []int{2, 3, 7, 200} {
		e, link, clock := newTestEngine(t, DefaultSettings())
		target := robot.Posture{0, 17, 180, 33, 90, 1, 179}

		err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
			return e.MoveTo(ctx, target, steps)
		})
		if err != nil {
			t.Fatalf("steps=%d: MoveTo: %v", steps, err)
		}
		lines := link.Lines()
		if len(lines) != steps {
			t.Errorf("steps=%d: sent %d frames", steps, len(lines))
		}
		if lines[len(lines)-1] != target.Frame() {
			t.Errorf("steps=%d: last frame %q, want %q", steps, lines[len(lines)-1], target.Frame())
		}
		if e.Current() != target {
			t.Errorf("steps=%d: posture = %v, want %v", steps, e.Current(), target)
		}
		if got := clock.Total(); got != FrameDelay*time.Duration(steps) {
			t.Errorf("steps=%d: waited %v, want %v", steps, got, FrameDelay*time.Duration(steps))
		}
	}
}

func TestMoveTo_StepsClamped(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())
	err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, robot.Uniform(0), 500)
	})
	if err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := len(link.Lines()); got != MaxInterpSteps {
		t.Errorf("sent %d frames, want %d", got, MaxInterpSteps)
	}
}

func TestMoveTo_StopLeavesLastFrame(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())
	link.OnSend = func(n int, line string) {
		if n == 3 {
			e.Stop()
		}
	}

	err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, robot.Uniform(0), 9)
	})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("MoveTo = %v, want ErrStopped", err)
	}
	lines := link.Lines()
	if len(lines) != 3 {
		t.Fatalf("sent %d frames, want 3", len(lines))
	}
	want, ok := robot.ParseFrame(lines[2])
	if !ok {
		t.Fatalf("unparseable frame %q", lines[2])
	}
	if e.Current() != want {
		t.Errorf("posture = %v, want last frame %v", e.Current(), want)
	}
	if want != robot.Uniform(60) {
		t.Errorf("third frame = %v, want all 60", want)
	}
}

func TestMoveTo_TransportErrorLeavesLastGoodFrame(t *testing.T) {
	e, link, _ := newTestEngine(t, DefaultSettings())
	link.FailAt(2, errors.New("broken pipe"))

	err := e.Run(context.Background(), ActivityManual, func(ctx context.Context) error {
		return e.MoveTo(ctx, robot.Uniform(0), 3)
	})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("MoveTo = %v, want TransportError", err)
	}
	if te.Line != "30 30 30 30 30 30 30" {
		t.Errorf("failed line = %q", te.Line)
	}
	if e.Current() != robot.Uniform(60) {
		t.Errorf("posture = %v, want all 60", e.Current())
	}
}
