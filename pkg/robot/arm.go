package robot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// ErrUnsupportedCommand is returned by Arm.SendLine for lines that are not
// posture frames. Bus servos have no conveyor or text commands.
var ErrUnsupportedCommand = errors.New("servo bus: only posture frames are supported")

// Arm drives channels directly on a Feetech servo bus instead of through
// the text-protocol controller board.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
}

// NewArm opens the bus on port and groups the calibrated servos.
func NewArm(port string, baudRate int, cal Calibration) (*Arm, error) {
	if len(cal) == 0 {
		cal = DefaultCalibration()
	}
	if baudRate <= 0 {
		baudRate = BusBaudRate
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	group := feetech.NewServoGroupByIDs(bus, cal.ServoIDs()...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cal,
	}, nil
}

// Close closes the bus.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadPosture reads the servo positions as a posture. Channels without
// calibration read as MinAngle.
func (a *Arm) ReadPosture(ctx context.Context) (Posture, error) {
	raw, err := a.group.Positions(ctx)
	if err != nil {
		return Posture{}, fmt.Errorf("read positions: %w", err)
	}

	var p Posture
	for id, pos := range raw {
		ch, sc, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		p[ch] = sc.Degrees(pos)
	}
	return p, nil
}

// WritePosture writes every calibrated channel of p with one sync write.
func (a *Arm) WritePosture(ctx context.Context, p Posture) error {
	positions := make(feetech.PositionMap, len(a.calibration))
	for ch, sc := range a.calibration {
		if !ch.Valid() {
			continue
		}
		positions[sc.ID] = sc.Raw(p[ch])
	}

	if err := a.group.SetPositions(ctx, positions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// SendLine accepts posture frames so the arm can stand in for the
// controller board link.
func (a *Arm) SendLine(ctx context.Context, line string) error {
	p, ok := ParseFrame(line)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedCommand, strings.TrimSpace(line))
	}
	return a.WritePosture(ctx, p)
}
