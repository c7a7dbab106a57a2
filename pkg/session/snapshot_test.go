package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gwillem/sppark/pkg/auto"
	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/robot"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s, _ := newTestSession(t)
	savePostures(t, s, Outbound, robot.Uniform(1), robot.Uniform(2))
	savePostures(t, s, Program, robot.Uniform(3))
	s.Engine().SetPosture(robot.Posture{1, 2, 3, 4, 5, 6, 7})
	s.SetSettings(motion.Settings{Throttle: 100 * time.Millisecond, InterpSteps: 12, Pause: time.Second})
	cfg := auto.DefaultConfig()
	cfg.ConveyorRun = "belt go"
	cfg.DwellGrip = 750 * time.Millisecond
	s.SetAutoConfig(cfg)

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	restored, _ := newTestSession(t)
	restored.Restore(snap)

	if got := restored.Engine().Current(); got != (robot.Posture{1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("posture = %v", got)
	}
	if got := restored.Counts(); got != (Counts{Outbound: 2, Program: 1}) {
		t.Errorf("counts = %+v", got)
	}
	if got, want := restored.Points(Outbound)[1], s.Points(Outbound)[1]; got != want {
		t.Errorf("point = %+v, want %+v", got, want)
	}
	if got := restored.Settings(); got.InterpSteps != 12 || got.Pause != time.Second || got.Throttle != 100*time.Millisecond || got.SendOnRelease {
		t.Errorf("settings = %+v", got)
	}
	if got := restored.Auto().Config(); got.ConveyorRun != "belt go" || got.DwellGrip != 750*time.Millisecond {
		t.Errorf("auto config = %+v", got)
	}
}

func TestSnapshot_LenientDecode(t *testing.T) {
	doc := `{
		"angles": [500, -1, "45", 90.9, 1, 2, 3],
		"outbound": [
			{"id": "a", "name": "ok", "angles": [1,2,3,4,5,6,7]},
			{"id": "b", "angles": [1,2,3]},
			"garbage",
			{"name": "no id", "angles": [9,9,9,9,9,9,999]}
		],
		"return": {"not": "a list"},
		"settings": {"throttle_ms": 5, "interp_steps": 1000, "pause_ms": "abc", "send_on_release": "yes"},
		"auto": {"home": [1,2,3], "pick": [5,5,5,5,5,5,5], "grip_open": 300, "dwell_grip_ms": 99999, "conveyor_stop": 7},
		"unknown": true
	}`
	var snap Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if want := (robot.Posture{180, 0, 45, 90, 1, 2, 3}); snap.Posture != want {
		t.Errorf("posture = %v, want %v", snap.Posture, want)
	}
	if len(snap.Outbound) != 2 {
		t.Fatalf("outbound = %+v, want 2 valid points", snap.Outbound)
	}
	if snap.Outbound[0].ID != "a" || snap.Outbound[0].Name != "ok" {
		t.Errorf("first point = %+v", snap.Outbound[0])
	}
	if snap.Outbound[1].ID == "" || snap.Outbound[1].Posture[6] != 180 {
		t.Errorf("second point = %+v", snap.Outbound[1])
	}
	if snap.Return != nil {
		t.Errorf("return = %+v, want none", snap.Return)
	}

	st := snap.Settings
	if st.Throttle != motion.MinThrottle || st.InterpSteps != motion.MaxInterpSteps || st.Pause != 0 || !st.SendOnRelease {
		t.Errorf("settings = %+v", st)
	}

	a := snap.Auto
	if a.Home != robot.Uniform(90) || a.Pick != robot.Uniform(5) {
		t.Errorf("home/pick = %v / %v", a.Home, a.Pick)
	}
	if a.GripOpen != 180 || a.GripClose != 90 || a.DwellGrip != auto.MaxDwell || a.DwellRelease != 250*time.Millisecond {
		t.Errorf("auto = %+v", a)
	}
	if a.ConveyorStop != "7" || a.ConveyorRun != "band run" {
		t.Errorf("conveyor = %q / %q", a.ConveyorStop, a.ConveyorRun)
	}
}

func TestSnapshot_Defaults(t *testing.T) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(`{}`), &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if snap.Posture != robot.Uniform(90) || snap.Settings != motion.DefaultSettings() || snap.Auto != auto.DefaultConfig() {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSnapshot_RejectsNonObject(t *testing.T) {
	for _, doc := range []string{`[]`, `"x"`, `42`} {
		var snap Snapshot
		if err := json.Unmarshal([]byte(doc), &snap); err == nil {
			t.Errorf("Unmarshal(%s) succeeded", doc)
		}
	}
}

func TestRestoreIdle(t *testing.T) {
	s, _ := newTestSession(t)
	snap := s.Snapshot()
	snap.Posture = robot.Uniform(0)

	_ = s.Engine().Run(t.Context(), motion.ActivityAuto, func(ctx context.Context) error {
		if s.RestoreIdle(snap) {
			t.Error("restored while busy")
		}
		return nil
	})
	if s.Engine().Current() == robot.Uniform(0) {
		t.Error("posture changed while busy")
	}
	if !s.RestoreIdle(snap) || s.Engine().Current() != robot.Uniform(0) {
		t.Error("RestoreIdle failed while idle")
	}
}
