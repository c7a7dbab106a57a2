package motion

import (
	"context"
	"math"

	"github.com/gwillem/sppark/pkg/robot"
)

// MoveTo sends target, split into steps frames by per-channel linear
// interpolation from the current posture. The posture is committed after
// every frame, so a cancelled or failed move leaves it at the last frame
// actually sent. The final frame equals the clamped target exactly.
//
// MoveTo does not take the lock; call it from inside Run.
func (e *Engine) MoveTo(ctx context.Context, target robot.Posture, steps int) error {
	steps = ClampSteps(steps)
	dst := target.Clamped()

	if steps == 1 {
		if err := stopped(ctx); err != nil {
			return err
		}
		if err := e.send(ctx, dst.Frame()); err != nil {
			return err
		}
		e.commit(dst)
		return nil
	}

	start := e.Current()
	for k := 1; k <= steps; k++ {
		if err := stopped(ctx); err != nil {
			return err
		}
		frame := Interpolate(start, dst, k, steps)
		if err := e.send(ctx, frame.Frame()); err != nil {
			return err
		}
		e.commit(frame)
		if err := sleep(ctx, e.clock, FrameDelay); err != nil {
			return err
		}
	}
	return nil
}

// Interpolate returns frame k of steps between start and dst, rounding
// each channel to the nearest degree. Frame steps is dst.
func Interpolate(start, dst robot.Posture, k, steps int) robot.Posture {
	if k >= steps {
		return dst
	}
	t := float64(k) / float64(steps)
	var frame robot.Posture
	for i := range frame {
		frame[i] = int(math.Round(float64(start[i]) + float64(dst[i]-start[i])*t))
	}
	return frame
}
