package robot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Angle limits for every channel, in degrees.
const (
	MinAngle = 0
	MaxAngle = 180
)

// Posture is a commanded joint-angle vector in degrees. Index 6 is the
// gripper. Values produced by this package are always within
// [MinAngle, MaxAngle].
type Posture [ChannelCount]int

// Uniform returns a posture with every channel set to deg.
func Uniform(deg int) Posture {
	var p Posture
	v := ClampAngle(deg)
	for i := range p {
		p[i] = v
	}
	return p
}

// PostureFrom builds a posture from exactly ChannelCount values.
func PostureFrom(values []int) (Posture, bool) {
	var p Posture
	if len(values) != ChannelCount {
		return p, false
	}
	for i, v := range values {
		p[i] = ClampAngle(v)
	}
	return p, true
}

// Clamped returns p with every value clamped into range.
func (p Posture) Clamped() Posture {
	for i := range p {
		p[i] = ClampAngle(p[i])
	}
	return p
}

// With returns a copy of p with channel c set to deg. Invalid channels
// leave p unchanged.
func (p Posture) With(c Channel, deg int) Posture {
	if !c.Valid() {
		return p
	}
	p[c] = ClampAngle(deg)
	return p
}

// WithGripper returns a copy of p with the gripper channel set to deg.
func (p Posture) WithGripper(deg int) Posture {
	return p.With(Gripper, deg)
}

// Slice returns the values as a slice.
func (p Posture) Slice() []int {
	return append([]int(nil), p[:]...)
}

// Frame encodes p as a controller command line, e.g.
// "90 90 90 90 90 90 90". The line terminator is added by the link.
func (p Posture) Frame() string {
	var sb strings.Builder
	for i, v := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (p Posture) String() string {
	return p.Frame()
}

// ParseFrame decodes a line produced by Frame. It accepts any whitespace
// between values and requires exactly ChannelCount integers.
func ParseFrame(line string) (Posture, bool) {
	fields := strings.Fields(line)
	if len(fields) != ChannelCount {
		return Posture{}, false
	}
	values := make([]int, 0, ChannelCount)
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Posture{}, false
		}
		values = append(values, v)
	}
	return PostureFrom(values)
}

// ClampAngle clamps deg into [MinAngle, MaxAngle].
func ClampAngle(deg int) int {
	return ClampInt(deg, MinAngle, MaxAngle)
}

// ClampInt clamps v into [lo, hi].
func ClampInt(v, lo, hi int) int {
	return min(hi, max(lo, v))
}

// ClampString parses the leading integer of s, ignoring leading
// whitespace and anything after the digits ("12.7deg" is 12), and clamps
// it into [lo, hi]. Text without a leading integer yields lo.
func ClampString(s string, lo, hi int) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return lo
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// Out of int64 range; the sign decides which bound wins.
		if s[0] == '-' {
			return lo
		}
		return hi
	}
	return clampInt64(v, lo, hi)
}

// ClampFloat truncates f toward zero and clamps it into [lo, hi]. NaN
// yields lo.
func ClampFloat(f float64, lo, hi int) int {
	if math.IsNaN(f) {
		return lo
	}
	f = math.Trunc(f)
	if f <= float64(lo) {
		return lo
	}
	if f >= float64(hi) {
		return hi
	}
	return int(f)
}

// ClampJSON reads a loosely typed JSON value as an integer clamped into
// [lo, hi]. Numbers are truncated, strings are parsed by ClampString and
// anything else yields lo.
func ClampJSON(raw json.RawMessage, lo, hi int) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return ClampFloat(f, lo, hi)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ClampString(s, lo, hi)
	}
	return lo
}

// PostureFromJSON decodes a JSON array of exactly ChannelCount loosely
// typed values, clamping each one.
func PostureFromJSON(raw json.RawMessage) (Posture, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) != ChannelCount {
		return Posture{}, false
	}
	var p Posture
	for i, item := range items {
		p[i] = ClampJSON(item, MinAngle, MaxAngle)
	}
	return p, true
}

func clampInt64(v int64, lo, hi int) int {
	if v < int64(lo) {
		return lo
	}
	if v > int64(hi) {
		return hi
	}
	return int(v)
}
