// Package sppark is an operator console for a seven-channel arm (six
// joints plus a gripper on CH6) driven over a serial line protocol.
//
// The console jogs the arm by hand, records points into outbound, return
// and program lists, plays them back with optional interpolation, and
// runs an autonomous pick-and-place cycle started by a sensor trigger
// and a scanned QR payload.
//
// # Installation
//
//	go install github.com/gwillem/sppark/cmd/sppark@latest
//
// # Usage
//
// First, pick the port and link type:
//
//	sppark setup
//
// Then open the console:
//
//	sppark console --qr /tmp/qr.fifo
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/sppark: CLI with setup, console, play, program, auto, points, export, import and send commands
//   - cmd/sppark-probe: serial port scanner
//   - pkg/robot: Postures, channels, points, configuration and the servo-bus link
//   - pkg/motion: Posture model, activity lock, frame encoder and sequence players
//   - pkg/qr: QR payload validation
//   - pkg/auto: Autonomous cycle controller
//   - pkg/session: Session state, snapshots, export/import and the state file
//   - pkg/link: Serial line link
//   - pkg/console: Runtime glue between a session, its link and a front end
package sppark
