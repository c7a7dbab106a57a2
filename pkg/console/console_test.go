package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/gwillem/sppark/pkg/auto"
	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/motion/motiontest"
	"github.com/gwillem/sppark/pkg/robot"
	"github.com/gwillem/sppark/pkg/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLink records sent lines and lets tests push inbound lines.
type fakeLink struct {
	sent   motiontest.Link
	in     chan string
	once   sync.Once
	closed chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{in: make(chan string, 8), closed: make(chan struct{})}
}

func (f *fakeLink) SendLine(ctx context.Context, line string) error {
	return f.sent.SendLine(ctx, line)
}

func (f *fakeLink) Lines() <-chan string { return f.in }

func (f *fakeLink) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeLink) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func newTestConsole(t *testing.T, store *session.Store) (*Controller, *fakeLink) {
	t.Helper()
	fl := newFakeLink()
	sess := session.New(session.Options{Clock: &motiontest.Clock{}})
	c, err := NewController(Config{
		Store: store,
		Dial: func(context.Context, *robot.Config, *slog.Logger) (Link, error) {
			return fl, nil
		},
	}, sess)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, fl
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitLog(t *testing.T, c *Controller, substr string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.Logs():
			if strings.Contains(msg, substr) {
				return
			}
		case <-timeout:
			t.Fatalf("no log line containing %q", substr)
		}
	}
}

func TestConnect(t *testing.T) {
	c, fl := newTestConsole(t, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := fl.sent.Lines(); !slices.Equal(got, []string{"show"}) {
		t.Errorf("sent = %q, want hello only", got)
	}
	if !c.Connected() || !c.Status().Connected {
		t.Error("not connected after Connect")
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("second Connect succeeded")
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !fl.isClosed() {
		t.Error("link not closed")
	}
	if c.Session().Engine().Connected() {
		t.Error("engine still attached")
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}

func TestConnect_DialError(t *testing.T) {
	sess := session.New(session.Options{})
	c, err := NewController(Config{
		Dial: func(context.Context, *robot.Config, *slog.Logger) (Link, error) {
			return nil, errors.New("no such port")
		},
	}, sess)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Connect(context.Background()); err == nil || !strings.Contains(err.Error(), "no such port") {
		t.Errorf("Connect = %v", err)
	}
	if c.Connected() {
		t.Error("connected after dial error")
	}
}

func TestNewController_BadPattern(t *testing.T) {
	cfg := robot.DefaultConfig()
	cfg.TriggerPattern = "("
	if _, err := NewController(Config{Robot: cfg}, session.New(session.Options{})); err == nil {
		t.Error("invalid trigger pattern accepted")
	}
}

func TestTriggerPattern(t *testing.T) {
	c, _ := newTestConsole(t, nil)
	tests := []struct {
		line string
		want bool
	}{
		{"TRIGGER", true},
		{"sensor on", true},
		{"obj", true},
		{"OBJECT detected", true},
		{"OBJECTS", false},
		{"TRIGGERED", false},
		{"ok 90 90 90", false},
	}
	for _, tt := range tests {
		if got := c.trigger.MatchString(tt.line); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestTriggerLine_RunsCycle(t *testing.T) {
	c, fl := newTestConsole(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := c.Session().Auto()
	a.Arm()

	c.OfferText(`{"id":"A1","angles":[1,2,3,4,5,6,7]}`)
	eventually(t, "payload cached", func() bool {
		_, ok := a.LastPayload()
		return ok
	})
	if got := a.State().Phase; got != auto.Armed {
		t.Fatalf("phase after payload = %v, want Armed", got)
	}

	fl.in <- "sensor: OBJ"
	eventually(t, "cycle end", func() bool {
		return len(fl.sent.Lines()) == 10 && a.State().Phase == auto.Armed && !c.Session().Engine().Busy()
	})
	lines := fl.sent.Lines()
	if lines[1] != "band stop" || lines[len(lines)-1] != "band run" {
		t.Errorf("cycle lines = %q", lines)
	}
	if got := c.Session().Engine().Current(); got != robot.Uniform(90).WithGripper(20) {
		t.Errorf("posture after cycle = %v", got)
	}
}

func TestLinkLost(t *testing.T) {
	c, fl := newTestConsole(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(fl.in)
	eventually(t, "link lost", func() bool {
		return !c.Connected() && !c.Session().Engine().Connected()
	})
	if !fl.isClosed() {
		t.Error("lost link not closed")
	}
	if err := c.Session().SendNow(context.Background()); !errors.Is(err, motion.ErrNotConnected) {
		t.Errorf("SendNow after loss = %v", err)
	}
}

func TestFeedPayloads(t *testing.T) {
	c, _ := newTestConsole(t, nil)
	input := "not a payload\n\nID=B7;A=1,2,3,4,5,6,7\n"
	if err := c.FeedPayloads(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("FeedPayloads: %v", err)
	}
	eventually(t, "payload cached", func() bool {
		p, ok := c.Session().Auto().LastPayload()
		return ok && p.ID == "B7"
	})
	if got := c.Session().Auto().State().Phase; got != auto.Disarmed {
		t.Errorf("phase = %v, want Disarmed", got)
	}
}

func TestFeedPayloads_Invalid(t *testing.T) {
	c, _ := newTestConsole(t, nil)
	if err := c.FeedPayloads(context.Background(), strings.NewReader("A=1,2,3\n")); err != nil {
		t.Fatal(err)
	}
	waitLog(t, c, "QR ignored")
	if _, ok := c.Session().Auto().LastPayload(); ok {
		t.Error("invalid text stored as payload")
	}
}

func TestGo_Reports(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"precondition", motion.ErrTooFewPoints, "play: sequence needs at least 2 points"},
		{"stopped", fmt.Errorf("%w: %w", motion.ErrStopped, context.Canceled), "play stopped"},
		{"failure", errors.New("boom"), "play failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestConsole(t, nil)
			c.Go("play", func(context.Context) error { return tt.err })
			waitLog(t, c, tt.want)
		})
	}
}

func TestJog_Throttled(t *testing.T) {
	c, fl := newTestConsole(t, nil)
	sess := c.Session()
	sess.SetSettings(motion.Settings{Throttle: motion.MinThrottle, SendOnRelease: false, InterpSteps: 1})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !c.Jog(robot.Base, 10) {
		t.Fatal("Jog rejected while idle")
	}
	eventually(t, "throttled send", func() bool {
		return slices.Contains(fl.sent.Lines(), "10 90 90 90 90 90 90")
	})
	if c.Jog(robot.Channel(9), 10) {
		t.Error("Jog accepted an invalid channel")
	}
}

func TestRelease(t *testing.T) {
	c, fl := newTestConsole(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Jog(robot.Gripper, 30)
	time.Sleep(50 * time.Millisecond)
	if got := len(fl.sent.Lines()); got != 1 {
		t.Fatalf("sent %d lines before release, want hello only", got)
	}
	c.Release()
	eventually(t, "send on release", func() bool {
		lines := fl.sent.Lines()
		return len(lines) == 2 && lines[1] == "90 90 90 90 90 90 30"
	})
}

func TestState_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	c, _ := newTestConsole(t, session.NewStore(path, nil))
	c.Session().Engine().SetPosture(robot.Uniform(33))
	if _, err := c.Session().SavePoint(session.Program, "a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, _ := newTestConsole(t, session.NewStore(path, nil))
	if err := c2.LoadState(); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := c2.Session().Counts(); got.Program != 1 {
		t.Errorf("counts = %+v", got)
	}
	if got := c2.Session().Engine().Current(); got != robot.Uniform(33) {
		t.Errorf("posture = %v", got)
	}
}

func TestLoadState_Missing(t *testing.T) {
	c, _ := newTestConsole(t, session.NewStore(filepath.Join(t.TempDir(), "none.json"), nil))
	if err := c.LoadState(); err != nil {
		t.Errorf("LoadState(missing) = %v", err)
	}
}

func TestClose(t *testing.T) {
	c, fl := newTestConsole(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fl.isClosed() {
		t.Error("link not closed")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect after Close succeeded")
	}
}
