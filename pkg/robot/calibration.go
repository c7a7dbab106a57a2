package robot

import "math"

// ServoCalibration maps one channel onto a bus servo.
type ServoCalibration struct {
	ID        int `json:"id" mapstructure:"id"`
	DriveMode int `json:"drive_mode" mapstructure:"drive_mode"`
	RangeMin  int `json:"range_min" mapstructure:"range_min"`
	RangeMax  int `json:"range_max" mapstructure:"range_max"`
}

// Calibration holds servo calibration keyed by channel. Channels without
// an entry are not driven on the bus.
type Calibration map[Channel]ServoCalibration

// Degrees converts a raw servo position to an angle in [MinAngle, MaxAngle].
func (c ServoCalibration) Degrees(raw int) int {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return MinAngle
	}
	frac := float64(raw-c.RangeMin) / rangeSize
	if c.DriveMode != 0 {
		frac = 1 - frac
	}
	return ClampAngle(int(math.Round(frac * MaxAngle)))
}

// Raw converts an angle to a raw servo position within the calibrated range.
func (c ServoCalibration) Raw(deg int) int {
	frac := float64(ClampAngle(deg)) / MaxAngle
	if c.DriveMode != 0 {
		frac = 1 - frac
	}
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int(math.Round(frac*rangeSize)) + c.RangeMin
}

// ServoIDs returns the servo IDs in channel order.
func (c Calibration) ServoIDs() []int {
	ids := make([]int, 0, len(c))
	// Walk AllChannels for a stable order
	for _, ch := range AllChannels() {
		if sc, ok := c[ch]; ok {
			ids = append(ids, sc.ID)
		}
	}
	return ids
}

// ByID returns the channel and calibration for a servo ID.
func (c Calibration) ByID(id int) (Channel, ServoCalibration, bool) {
	for ch, sc := range c {
		if sc.ID == id {
			return ch, sc, true
		}
	}
	return 0, ServoCalibration{}, false
}

// DefaultCalibration assigns servo IDs 1..7 to CH0..CH6 over the full
// 12-bit position range.
func DefaultCalibration() Calibration {
	cal := make(Calibration, ChannelCount)
	for _, ch := range AllChannels() {
		cal[ch] = ServoCalibration{
			ID:       int(ch) + 1,
			RangeMin: 0,
			RangeMax: 4095,
		}
	}
	return cal
}
