// Package session is the operator session: the motion engine, the
// autonomous controller and the three saved point lists, plus their
// persistence.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/gwillem/sppark/pkg/auto"
	"github.com/gwillem/sppark/pkg/motion"
	"github.com/gwillem/sppark/pkg/robot"
)

// ListName identifies one of the saved point lists.
type ListName string

const (
	Outbound ListName = "outbound"
	Return   ListName = "return"
	Program  ListName = "program"
)

// Lists is every list in display order.
var Lists = []ListName{Outbound, Return, Program}

// ParseListName accepts a list name as typed on the command line.
func ParseListName(s string) (ListName, error) {
	l := ListName(s)
	if !slices.Contains(Lists, l) {
		return "", fmt.Errorf("unknown list %q (want outbound, return or program)", s)
	}
	return l, nil
}

// Label is the prefix of unnamed points and the progress label.
func (l ListName) Label() string {
	switch l {
	case Outbound:
		return "Outbound"
	case Return:
		return "Return"
	case Program:
		return "PROG"
	}
	return string(l)
}

var ErrPointNotFound = motion.Precondition("point not found")

// Hooks observe the session. They run on the goroutine that caused the
// event and must not block.
type Hooks struct {
	OnPointSaved        func(list ListName, p robot.Point)
	OnCycleStateChanged func(s auto.State)
	OnFrameSent         func(line string, p robot.Posture)
	OnProgress          func(label string, index, total int)
	// OnChanged fires after any change that belongs in the snapshot
	// other than the posture.
	OnChanged func()
}

// Options configure a new Session. Zero values select defaults.
type Options struct {
	Clock    motion.Clock
	Logger   *slog.Logger
	Settings motion.Settings
	Auto     auto.Config
}

// Counts is the number of saved points per list.
type Counts struct {
	Outbound int
	Return   int
	Program  int
}

// Session owns all mutable state of one console.
type Session struct {
	engine *motion.Engine
	auto   *auto.Controller
	logger *slog.Logger

	mu      sync.Mutex
	lists   map[ListName][]robot.Point
	hooks   Hooks
	looping bool
}

// New creates a session with empty lists and no link.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Auto == (auto.Config{}) {
		opts.Auto = auto.DefaultConfig()
	}
	engine := motion.NewEngine(motion.Options{
		Clock:    opts.Clock,
		Logger:   opts.Logger.With("component", "motion"),
		Settings: opts.Settings,
	})
	s := &Session{
		engine: engine,
		auto:   auto.NewController(engine, opts.Auto, opts.Logger.With("component", "auto")),
		logger: opts.Logger,
		lists:  make(map[ListName][]robot.Point),
	}
	s.auto.OnStateChange(func(st auto.State) {
		if fn := s.getHooks().OnCycleStateChanged; fn != nil {
			fn(st)
		}
	})
	return s
}

// Engine returns the motion engine.
func (s *Session) Engine() *motion.Engine { return s.engine }

// Auto returns the autonomous cycle controller.
func (s *Session) Auto() *auto.Controller { return s.auto }

// SetHooks replaces the session hooks.
func (s *Session) SetHooks(h Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
	s.engine.SetHooks(motion.Hooks{
		OnFrameSent: h.OnFrameSent,
		OnProgress:  h.OnProgress,
	})
}

func (s *Session) getHooks() Hooks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hooks
}

func (s *Session) changed() {
	if fn := s.getHooks().OnChanged; fn != nil {
		fn()
	}
}

// Points returns a copy of list.
func (s *Session) Points(list ListName) []robot.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lists[list])
}

// Counts returns the size of every list.
func (s *Session) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Outbound: len(s.lists[Outbound]),
		Return:   len(s.lists[Return]),
		Program:  len(s.lists[Program]),
	}
}

// SavePoint appends the current posture to list. Points cannot be saved
// while an activity moves the arm.
func (s *Session) SavePoint(list ListName, name string) (robot.Point, error) {
	if _, err := ParseListName(string(list)); err != nil {
		return robot.Point{}, err
	}
	if s.engine.Busy() {
		return robot.Point{}, motion.ErrBusy
	}
	p := robot.NewPoint(name, s.engine.Current())

	s.mu.Lock()
	s.lists[list] = append(s.lists[list], p)
	onSaved := s.hooks.OnPointSaved
	s.mu.Unlock()

	s.logger.Info("point saved", "list", list, "id", p.ID, "angles", p.Posture.String())
	if onSaved != nil {
		onSaved(list, p)
	}
	s.changed()
	return p, nil
}

// DeletePoint removes the point with id from list.
func (s *Session) DeletePoint(list ListName, id string) error {
	s.mu.Lock()
	pts := s.lists[list]
	i := slices.IndexFunc(pts, func(p robot.Point) bool { return p.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return ErrPointNotFound
	}
	s.lists[list] = slices.Delete(slices.Clone(pts), i, i+1)
	s.mu.Unlock()
	s.changed()
	return nil
}

// ClearList empties list.
func (s *Session) ClearList(list ListName) {
	s.mu.Lock()
	delete(s.lists, list)
	s.mu.Unlock()
	s.changed()
}

// Point looks up a point by id.
func (s *Session) Point(list ListName, id string) (robot.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.lists[list], func(p robot.Point) bool { return p.ID == id })
	if i < 0 {
		return robot.Point{}, false
	}
	return s.lists[list][i], true
}

// GoToPoint moves to a saved point as a manual activity.
func (s *Session) GoToPoint(ctx context.Context, list ListName, id string) error {
	p, ok := s.Point(list, id)
	if !ok {
		return ErrPointNotFound
	}
	return s.engine.GoTo(ctx, p.Posture)
}

// LoadPoint copies a saved point into the posture without sending it.
func (s *Session) LoadPoint(list ListName, id string) error {
	p, ok := s.Point(list, id)
	if !ok {
		return ErrPointNotFound
	}
	if !s.engine.Load(p.Posture) {
		return motion.ErrBusy
	}
	return nil
}

// Play replays one list once.
func (s *Session) Play(ctx context.Context, list ListName) error {
	return s.engine.PlaySequence(ctx, s.Points(list), list.Label())
}

// PlayBoth replays the outbound list and then the return list.
func (s *Session) PlayBoth(ctx context.Context) error {
	return s.engine.PlayBoth(ctx, s.Points(Outbound), s.Points(Return), Outbound.Label(), Return.Label())
}

// RunProgram plays the program list once.
func (s *Session) RunProgram(ctx context.Context) error {
	return s.engine.RunProgramOnce(ctx, s.Points(Program), Program.Label())
}

// LoopProgram repeats the program list until stopped. The loop flag is
// only set while this call holds the engine lock.
func (s *Session) LoopProgram(ctx context.Context) error {
	points := s.Points(Program)
	if len(points) < motion.MinSequencePoints {
		return motion.ErrTooFewPoints
	}
	return s.engine.Run(ctx, motion.ActivityProgram, func(ctx context.Context) error {
		s.setLooping(true)
		defer s.setLooping(false)
		return s.engine.LoopPoints(ctx, points, Program.Label())
	})
}

func (s *Session) setLooping(v bool) {
	s.mu.Lock()
	s.looping = v
	s.mu.Unlock()
}

// Center sets every channel to 90 and sends it when connected.
func (s *Session) Center(ctx context.Context) error {
	return s.loadAndSend(ctx, robot.Uniform(90))
}

// Zero sets every channel to 0 and sends it when connected.
func (s *Session) Zero(ctx context.Context) error {
	return s.loadAndSend(ctx, robot.Uniform(0))
}

func (s *Session) loadAndSend(ctx context.Context, p robot.Posture) error {
	if !s.engine.Load(p) {
		return motion.ErrBusy
	}
	if !s.engine.Connected() {
		return nil
	}
	return s.engine.SendNow(ctx)
}

// SendNow sends the current posture as one frame.
func (s *Session) SendNow(ctx context.Context) error {
	return s.engine.SendNow(ctx)
}

// GoHome moves to the home pose with the gripper open.
func (s *Session) GoHome(ctx context.Context) error {
	return s.engine.GoTo(ctx, s.auto.Config().HomeOpen())
}

// GoPick moves to the pick pose with the gripper open.
func (s *Session) GoPick(ctx context.Context) error {
	return s.engine.GoTo(ctx, s.auto.Config().PickOpen())
}

// SetHome stores the current posture as the home pose.
func (s *Session) SetHome() {
	cfg := s.auto.Config()
	cfg.Home = s.engine.Current()
	s.auto.SetConfig(cfg)
	s.changed()
}

// SetPick stores the current posture as the pick pose.
func (s *Session) SetPick() {
	cfg := s.auto.Config()
	cfg.Pick = s.engine.Current()
	s.auto.SetConfig(cfg)
	s.changed()
}

// Settings returns the motion settings.
func (s *Session) Settings() motion.Settings { return s.engine.Settings() }

// SetSettings replaces the motion settings.
func (s *Session) SetSettings(st motion.Settings) {
	s.engine.SetSettings(st)
	s.changed()
}

// SetAutoConfig replaces the autonomous configuration.
func (s *Session) SetAutoConfig(cfg auto.Config) {
	s.auto.SetConfig(cfg)
	s.changed()
}

// Stop cancels whatever is moving the arm. An armed or running
// autonomous controller is stopped as well.
func (s *Session) Stop() {
	s.engine.Stop()
	if s.auto.State().Phase != auto.Disarmed {
		s.auto.Stop()
	}
}

// Status is the operator status line.
func (s *Session) Status() string {
	if s.engine.Holder() == motion.ActivityProgram {
		s.mu.Lock()
		looping := s.looping
		s.mu.Unlock()
		if looping {
			return "LOOP (PROG)"
		}
		return "RUNNING (PROG)"
	}
	return s.auto.State().Label()
}

// replaceLists swaps in new list contents.
func (s *Session) replaceLists(lists map[ListName][]robot.Point) {
	s.mu.Lock()
	for name, pts := range lists {
		s.lists[name] = slices.Clone(pts)
	}
	s.mu.Unlock()
	s.changed()
}
