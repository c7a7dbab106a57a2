package motion

import (
	"context"

	"github.com/gwillem/sppark/pkg/robot"
)

// MinSequencePoints is the shortest list that can be played or looped.
const MinSequencePoints = 2

// PlaySequence plays points once, in order, as a sequence activity.
func (e *Engine) PlaySequence(ctx context.Context, points []robot.Point, label string) error {
	if len(points) < MinSequencePoints {
		return ErrTooFewPoints
	}
	points = clonePoints(points)
	return e.Run(ctx, ActivitySequence, func(ctx context.Context) error {
		return e.playPoints(ctx, points, label)
	})
}

// PlayBoth plays the outbound list and then, unless stopped, the return
// list. Empty lists are skipped; at least one list must be playable.
func (e *Engine) PlayBoth(ctx context.Context, outbound, ret []robot.Point, outboundLabel, returnLabel string) error {
	if len(outbound) < MinSequencePoints && len(ret) < MinSequencePoints {
		return ErrTooFewPoints
	}
	outbound, ret = clonePoints(outbound), clonePoints(ret)
	return e.Run(ctx, ActivitySequence, func(ctx context.Context) error {
		if len(outbound) > 0 {
			if err := e.playPoints(ctx, outbound, outboundLabel); err != nil {
				return err
			}
		}
		if err := stopped(ctx); err != nil {
			return err
		}
		if len(ret) > 0 {
			return e.playPoints(ctx, ret, returnLabel)
		}
		return nil
	})
}

// RunProgramOnce plays a program list a single time.
func (e *Engine) RunProgramOnce(ctx context.Context, points []robot.Point, label string) error {
	if len(points) < MinSequencePoints {
		return ErrTooFewPoints
	}
	points = clonePoints(points)
	return e.Run(ctx, ActivityProgram, func(ctx context.Context) error {
		return e.playPoints(ctx, points, label)
	})
}

// RunProgramLoop repeats a program list until the activity is stopped.
// It always returns an error; ErrStopped is the normal exit.
func (e *Engine) RunProgramLoop(ctx context.Context, points []robot.Point, label string) error {
	if len(points) < MinSequencePoints {
		return ErrTooFewPoints
	}
	points = clonePoints(points)
	return e.Run(ctx, ActivityProgram, func(ctx context.Context) error {
		return e.LoopPoints(ctx, points, label)
	})
}

// LoopPoints repeats points until ctx is done. It must run inside an
// activity started with Run.
func (e *Engine) LoopPoints(ctx context.Context, points []robot.Point, label string) error {
	for {
		if err := stopped(ctx); err != nil {
			return err
		}
		if err := e.playPoints(ctx, points, label); err != nil {
			return err
		}
	}
}

// playPoints walks points with the configured steps and pause. A stop
// request skips the pause after the current point.
func (e *Engine) playPoints(ctx context.Context, points []robot.Point, label string) error {
	settings := e.Settings()
	for i, p := range points {
		if err := stopped(ctx); err != nil {
			return err
		}
		e.progress(label, i+1, len(points))
		if err := e.MoveTo(ctx, p.Posture, settings.InterpSteps); err != nil {
			return err
		}
		if err := stopped(ctx); err != nil {
			return err
		}
		if err := sleep(ctx, e.clock, settings.Pause); err != nil {
			return err
		}
	}
	return nil
}

func clonePoints(points []robot.Point) []robot.Point {
	return append([]robot.Point(nil), points...)
}
