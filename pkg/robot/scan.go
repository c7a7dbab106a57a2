package robot

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// BusBaudRate is the default Feetech bus speed.
const BusBaudRate = 1_000_000

// ScanBus looks for servos with IDs 1..ChannelCount on port and returns
// the IDs that answered, in order.
func ScanBus(ctx context.Context, port string) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: BusBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", port, err)
	}
	defer bus.Close()

	servos, err := bus.Scan(ctx, 1, ChannelCount)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", port, err)
	}

	ids := make([]int, 0, len(servos))
	for _, s := range servos {
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

// CalibrationForIDs maps found servo IDs onto channels. Servo n drives
// channel n-1; IDs outside 1..ChannelCount are skipped.
func CalibrationForIDs(ids []int) Calibration {
	cal := make(Calibration, len(ids))
	for _, id := range ids {
		ch := Channel(id - 1)
		if !ch.Valid() {
			continue
		}
		cal[ch] = ServoCalibration{ID: id, RangeMin: 0, RangeMax: 4095}
	}
	return cal
}
