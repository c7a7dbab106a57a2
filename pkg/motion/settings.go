package motion

import "time"

// Limits for Settings fields.
const (
	MinThrottle    = 20 * time.Millisecond
	MaxThrottle    = 2 * time.Second
	MaxInterpSteps = 200
	MaxPause       = 20 * time.Second

	// FrameDelay separates interpolated frames.
	FrameDelay = 20 * time.Millisecond
)

// Settings tune manual sends and sequence playback.
type Settings struct {
	// Throttle is the minimum spacing of automatic sends while jogging.
	Throttle time.Duration
	// SendOnRelease defers manual sends until the operator releases the
	// control instead of sending on every throttled change.
	SendOnRelease bool
	// InterpSteps is the number of frames per move; 1 sends the target
	// directly.
	InterpSteps int
	// Pause is the wait after each point of a sequence or program.
	Pause time.Duration
}

// DefaultSettings returns the settings of a fresh session.
func DefaultSettings() Settings {
	return Settings{
		Throttle:      250 * time.Millisecond,
		SendOnRelease: true,
		InterpSteps:   1,
		Pause:         250 * time.Millisecond,
	}
}

// Clamped returns s with every field within its limits.
func (s Settings) Clamped() Settings {
	s.Throttle = ClampDuration(s.Throttle, MinThrottle, MaxThrottle)
	s.InterpSteps = ClampSteps(s.InterpSteps)
	s.Pause = ClampDuration(s.Pause, 0, MaxPause)
	return s
}

// ClampSteps clamps an interpolation step count into [1, MaxInterpSteps].
func ClampSteps(n int) int {
	return min(MaxInterpSteps, max(1, n))
}

// ClampDuration clamps d into [lo, hi] at millisecond resolution.
func ClampDuration(d, lo, hi time.Duration) time.Duration {
	d = d.Truncate(time.Millisecond)
	return min(hi, max(lo, d))
}
