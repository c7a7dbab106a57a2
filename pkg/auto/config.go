package auto

import (
	"strings"
	"time"

	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/robot"
)

// MaxDwell bounds both dwell durations.
const MaxDwell = 10 * time.Second

// Config holds the fixed poses and timings of the pick-and-place script.
// Home and Pick carry their own CH6 value, but the script always replaces
// it with GripOpen or GripClose.
type Config struct {
	Home      robot.Posture
	Pick      robot.Posture
	GripOpen  int
	GripClose int

	// DwellGrip follows closing the gripper on the object.
	DwellGrip time.Duration
	// DwellRelease follows opening the gripper at the destination.
	DwellRelease time.Duration

	// ConveyorStop and ConveyorRun are sent verbatim around the cycle. An
	// empty command is skipped.
	ConveyorStop string
	ConveyorRun  string
}

// DefaultConfig returns the configuration of a fresh session.
func DefaultConfig() Config {
	return Config{
		Home:         robot.Uniform(90),
		Pick:         robot.Uniform(90),
		GripOpen:     20,
		GripClose:    90,
		DwellGrip:    250 * time.Millisecond,
		DwellRelease: 250 * time.Millisecond,
		ConveyorStop: "band stop",
		ConveyorRun:  "band run",
	}
}

// Clamped returns c with every angle in range and both dwells within
// [0, MaxDwell]. Commands are trimmed.
func (c Config) Clamped() Config {
	c.Home = c.Home.Clamped()
	c.Pick = c.Pick.Clamped()
	c.GripOpen = robot.ClampAngle(c.GripOpen)
	c.GripClose = robot.ClampAngle(c.GripClose)
	c.DwellGrip = motion.ClampDuration(c.DwellGrip, 0, MaxDwell)
	c.DwellRelease = motion.ClampDuration(c.DwellRelease, 0, MaxDwell)
	c.ConveyorStop = strings.TrimSpace(c.ConveyorStop)
	c.ConveyorRun = strings.TrimSpace(c.ConveyorRun)
	return c
}

// HomeOpen is the home pose with the gripper open.
func (c Config) HomeOpen() robot.Posture { return c.Home.WithGripper(c.GripOpen) }

// PickOpen is the pick pose with the gripper open.
func (c Config) PickOpen() robot.Posture { return c.Pick.WithGripper(c.GripOpen) }
