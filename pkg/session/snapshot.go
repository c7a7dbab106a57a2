package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/sppark/pkg/auto"
	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/robot"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Snapshot is the persisted part of a session.
type Snapshot struct {
	Posture  robot.Posture
	Outbound []robot.Point
	Return   []robot.Point
	Program  []robot.Point
	Settings motion.Settings
	Auto     auto.Config
}

// Snapshot captures the session state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Posture:  s.engine.Current(),
		Outbound: s.Points(Outbound),
		Return:   s.Points(Return),
		Program:  s.Points(Program),
		Settings: s.engine.Settings(),
		Auto:     s.auto.Config(),
	}
}

// Restore replaces the session state with snap. Every value is clamped
// again and missing point identifiers are regenerated.
func (s *Session) Restore(snap Snapshot) {
	s.engine.SetPosture(snap.Posture)
	s.engine.SetSettings(snap.Settings)
	s.auto.SetConfig(snap.Auto)
	s.replaceLists(map[ListName][]robot.Point{
		Outbound: sanitizePoints(snap.Outbound),
		Return:   sanitizePoints(snap.Return),
		Program:  sanitizePoints(snap.Program),
	})
}

// RestoreIdle restores snap unless an activity is running, and reports
// whether it did.
func (s *Session) RestoreIdle(snap Snapshot) bool {
	if s.engine.Busy() {
		return false
	}
	s.Restore(snap)
	return true
}

func sanitizePoints(pts []robot.Point) []robot.Point {
	out := make([]robot.Point, 0, len(pts))
	for _, p := range pts {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.Posture = p.Posture.Clamped()
		out = append(out, p)
	}
	return out
}

type snapshotDoc struct {
	Version  int           `json:"version"`
	Angles   robot.Posture `json:"angles"`
	Outbound []robot.Point `json:"outbound"`
	Return   []robot.Point `json:"return"`
	Program  []robot.Point `json:"program"`
	Settings settingsDoc   `json:"settings"`
	Auto     autoDoc       `json:"auto"`
}

type settingsDoc struct {
	ThrottleMS    int64 `json:"throttle_ms"`
	SendOnRelease bool  `json:"send_on_release"`
	InterpSteps   int   `json:"interp_steps"`
	PauseMS       int64 `json:"pause_ms"`
}

type autoDoc struct {
	Home           robot.Posture `json:"home"`
	Pick           robot.Posture `json:"pick"`
	GripOpen       int           `json:"grip_open"`
	GripClose      int           `json:"grip_close"`
	DwellGripMS    int64         `json:"dwell_grip_ms"`
	DwellReleaseMS int64         `json:"dwell_release_ms"`
	ConveyorStop   string        `json:"conveyor_stop"`
	ConveyorRun    string        `json:"conveyor_run"`
}

// MarshalJSON writes the snapshot in its file format.
func (snap Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotDoc{
		Version:  SnapshotVersion,
		Angles:   snap.Posture,
		Outbound: nonNil(snap.Outbound),
		Return:   nonNil(snap.Return),
		Program:  nonNil(snap.Program),
		Settings: settingsDoc{
			ThrottleMS:    snap.Settings.Throttle.Milliseconds(),
			SendOnRelease: snap.Settings.SendOnRelease,
			InterpSteps:   snap.Settings.InterpSteps,
			PauseMS:       snap.Settings.Pause.Milliseconds(),
		},
		Auto: autoDoc{
			Home:           snap.Auto.Home,
			Pick:           snap.Auto.Pick,
			GripOpen:       snap.Auto.GripOpen,
			GripClose:      snap.Auto.GripClose,
			DwellGripMS:    snap.Auto.DwellGrip.Milliseconds(),
			DwellReleaseMS: snap.Auto.DwellRelease.Milliseconds(),
			ConveyorStop:   snap.Auto.ConveyorStop,
			ConveyorRun:    snap.Auto.ConveyorRun,
		},
	})
}

// UnmarshalJSON reads a snapshot leniently: only a non-object document is
// an error. Missing or malformed fields keep their defaults, numbers are
// clamped and points without exactly seven angles are dropped.
func (snap *Snapshot) UnmarshalJSON(data []byte) error {
	doc, ok := objectFields(data)
	if !ok {
		return fmt.Errorf("snapshot: not a JSON object")
	}

	out := Snapshot{
		Posture:  robot.Uniform(90),
		Settings: motion.DefaultSettings(),
		Auto:     auto.DefaultConfig(),
	}
	if p, ok := robot.PostureFromJSON(doc["angles"]); ok {
		out.Posture = p
	}
	out.Outbound = decodePoints(doc["outbound"])
	out.Return = decodePoints(doc["return"])
	out.Program = decodePoints(doc["program"])

	if st, ok := objectFields(doc["settings"]); ok {
		out.Settings = motion.Settings{
			Throttle:      st.millisField("throttle_ms", motion.DefaultSettings().Throttle, motion.MinThrottle, motion.MaxThrottle),
			SendOnRelease: st.boolField("send_on_release", motion.DefaultSettings().SendOnRelease),
			InterpSteps:   st.intField("interp_steps", 1, 1, motion.MaxInterpSteps),
			Pause:         st.millisField("pause_ms", motion.DefaultSettings().Pause, 0, motion.MaxPause),
		}
	}

	if a, ok := objectFields(doc["auto"]); ok {
		def := auto.DefaultConfig()
		cfg := def
		if p, ok := robot.PostureFromJSON(a["home"]); ok {
			cfg.Home = p
		}
		if p, ok := robot.PostureFromJSON(a["pick"]); ok {
			cfg.Pick = p
		}
		cfg.GripOpen = a.intField("grip_open", def.GripOpen, robot.MinAngle, robot.MaxAngle)
		cfg.GripClose = a.intField("grip_close", def.GripClose, robot.MinAngle, robot.MaxAngle)
		cfg.DwellGrip = a.millisField("dwell_grip_ms", def.DwellGrip, 0, auto.MaxDwell)
		cfg.DwellRelease = a.millisField("dwell_release_ms", def.DwellRelease, 0, auto.MaxDwell)
		cfg.ConveyorStop = a.stringField("conveyor_stop", def.ConveyorStop)
		cfg.ConveyorRun = a.stringField("conveyor_run", def.ConveyorRun)
		out.Auto = cfg.Clamped()
	}

	*snap = out
	return nil
}

// decodePoints keeps every entry that is an object with exactly seven
// angles. Missing identifiers are regenerated.
func decodePoints(raw json.RawMessage) []robot.Point {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []robot.Point
	for _, item := range items {
		f, ok := objectFields(item)
		if !ok {
			continue
		}
		p, ok := robot.PostureFromJSON(f["angles"])
		if !ok {
			continue
		}
		id := f.stringField("id", "")
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, robot.Point{ID: id, Name: f.stringField("name", ""), Posture: p})
	}
	return out
}

func nonNil(pts []robot.Point) []robot.Point {
	if pts == nil {
		return []robot.Point{}
	}
	return pts
}

// fields is a JSON object read one member at a time.
type fields map[string]json.RawMessage

func objectFields(raw json.RawMessage) (fields, bool) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

func (f fields) present(key string) (json.RawMessage, bool) {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (f fields) intField(key string, def, lo, hi int) int {
	raw, ok := f.present(key)
	if !ok {
		return robot.ClampInt(def, lo, hi)
	}
	return robot.ClampJSON(raw, lo, hi)
}

func (f fields) millisField(key string, def, lo, hi time.Duration) time.Duration {
	ms := f.intField(key, int(def.Milliseconds()), int(lo.Milliseconds()), int(hi.Milliseconds()))
	return time.Duration(ms) * time.Millisecond
}

func (f fields) boolField(key string, def bool) bool {
	raw, ok := f.present(key)
	if !ok {
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return def
	}
	return b
}

func (f fields) stringField(key, def string) string {
	raw, ok := f.present(key)
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return def
}
