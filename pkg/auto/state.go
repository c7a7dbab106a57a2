package auto

import (
	"fmt"

	"github.com/gwillem/sppark/pkg/qr"
)

// Phase is the controller's position in the cycle state machine.
type Phase int

const (
	Disarmed Phase = iota
	Armed
	WaitingForPayload
	Running
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Disarmed:
		return "disarmed"
	case Armed:
		return "armed"
	case WaitingForPayload:
		return "waiting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the controller state plus the data that belongs to its phase.
// Payload and Rearm are only set while Running; Err is only set when a
// cycle failed into Stopped.
type State struct {
	Phase   Phase
	Payload *qr.Payload
	Rearm   bool
	Err     error
}

// Busy reports whether a cycle is executing.
func (s State) Busy() bool { return s.Phase == Running }

// Armed reports whether triggers will be honoured once the controller is
// idle again.
func (s State) Armed() bool {
	switch s.Phase {
	case Armed, WaitingForPayload:
		return true
	case Running:
		return s.Rearm
	}
	return false
}

// Label is the operator-facing status text.
func (s State) Label() string {
	switch s.Phase {
	case Armed:
		return "ARMED"
	case WaitingForPayload:
		return "WAITING QR (OBJ)"
	case Running:
		id := qr.UnspecifiedID
		if s.Payload != nil {
			id = s.Payload.ID
		}
		return fmt.Sprintf("RUNNING (%s)", id)
	case Stopped:
		if s.Err != nil {
			return "STOP/ERROR"
		}
		return "STOP"
	}
	return "Idle"
}
