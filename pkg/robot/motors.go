// Package robot provides the posture model and hardware links for the
// seven-channel arm.
package robot

import "fmt"

// Channel identifies a servo channel on the controller board.
type Channel int

// Channels of the arm. CH0..CH5 are joints, CH6 drives the gripper.
const (
	Base Channel = iota
	Shoulder
	Elbow
	WristPitch
	WristRoll
	WristYaw
	Gripper
)

// ChannelCount is the number of channels in every posture.
const ChannelCount = 7

// AllChannels returns all channels in frame order.
func AllChannels() []Channel {
	return []Channel{
		Base,
		Shoulder,
		Elbow,
		WristPitch,
		WristRoll,
		WristYaw,
		Gripper,
	}
}

// Valid reports whether c indexes a channel of the arm.
func (c Channel) Valid() bool {
	return c >= 0 && c < ChannelCount
}

// String returns the board label, e.g. "CH3".
func (c Channel) String() string {
	return fmt.Sprintf("CH%d", int(c))
}

// Label returns the operator-facing label.
func (c Channel) Label() string {
	if c == Gripper {
		return "CH6 (Gripper)"
	}
	return c.String()
}
