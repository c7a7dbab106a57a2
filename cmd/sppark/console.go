package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/robot"
	"github.com/gwillem/sppark/pkg/session"
)

type ConsoleCommand struct {
	QR      string `long:"qr" description:"File or FIFO with decoded QR text, one payload per line"`
	LogFile string `long:"log-file" default:"sppark.log" description:"Log file (the console owns the terminal)"`
	Offline bool   `long:"offline" description:"Start without connecting"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	infoHeight   = 3 // counts, settings, help
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	bigStep = 10
)

// Channel colors - distinct colors for each channel
var channelColors = map[robot.Channel]string{
	robot.Base:       "196", // red
	robot.Shoulder:   "208", // orange
	robot.Elbow:      "226", // yellow
	robot.WristPitch: "46",  // green
	robot.WristRoll:  "51",  // cyan
	robot.WristYaw:   "33",  // blue
	robot.Gripper:    "201", // magenta
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	armedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	runningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	stoppedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
)

type consoleModel struct {
	ctrl     *console.Controller
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	status   console.Status
	selected robot.Channel
	quitting bool
	plotted  bool
}

func (m *consoleModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg console.Status
type logMsg string

func waitForState(ctrl *console.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *console.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *consoleModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - infoHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *consoleModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialConsoleModel(ctrl *console.Controller, logs []string) consoleModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(robot.MinAngle, robot.MaxAngle),
	)

	// Set up data set styles for each channel
	for _, ch := range robot.AllChannels() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(channelColors[ch]))
		chart.SetDataSetStyles(ch.String(), runes.ThinLineStyle, style)
	}

	m := consoleModel{
		ctrl:   ctrl,
		chart:  &chart,
		status: ctrl.Status(),
	}
	for _, l := range logs {
		m.addLog(l)
	}
	m.plot(m.status.Posture)
	return m
}

func (m *consoleModel) plot(p robot.Posture) {
	for _, ch := range robot.AllChannels() {
		m.chart.PushDataSet(ch.String(), float64(p[ch]))
	}
	m.chart.DrawAll()
	m.plotted = true
}

func (m consoleModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		if m.handleKey(msg.String()) {
			m.quitting = true
			return m, tea.Quit
		}
		m.status = m.ctrl.Status()
		return m, nil

	case stateMsg:
		status := console.Status(msg)
		// Only update chart if the posture moved (freeze when idle)
		if !m.plotted || status.Posture != m.status.Posture {
			m.plot(status.Posture)
		}
		m.status = status
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

// handleKey runs the action bound to key and reports whether to quit.
func (m *consoleModel) handleKey(key string) bool {
	ctrl := m.ctrl
	sess := ctrl.Session()
	a := sess.Auto()

	switch key {
	case "q", "ctrl+c":
		return true
	case "esc", "s":
		sess.Stop()

	case "up", "k":
		m.selected = (m.selected + robot.ChannelCount - 1) % robot.ChannelCount
	case "down", "j", "tab":
		m.selected = (m.selected + 1) % robot.ChannelCount
	case "left", "h":
		m.jog(-1)
	case "right", "l":
		m.jog(1)
	case "shift+left", "H":
		m.jog(-bigStep)
	case "shift+right", "L":
		m.jog(bigStep)
	case "enter":
		ctrl.Go("send", sess.SendNow)
	case "c":
		ctrl.Go("center", sess.Center)
	case "z":
		ctrl.Go("zero", sess.Zero)

	case "1", "2", "3":
		list := session.Lists[int(key[0]-'1')]
		ctrl.Go("save "+list.Label(), func(context.Context) error {
			_, err := sess.SavePoint(list, "")
			return err
		})
	case "o":
		ctrl.Go("play outbound", func(ctx context.Context) error { return sess.Play(ctx, session.Outbound) })
	case "r":
		ctrl.Go("play return", func(ctx context.Context) error { return sess.Play(ctx, session.Return) })
	case "b":
		ctrl.Go("play both", sess.PlayBoth)
	case "g":
		ctrl.Go("program", sess.RunProgram)
	case "G":
		ctrl.Go("program loop", sess.LoopProgram)

	case "a":
		if a.State().Armed() {
			a.Disarm()
		} else {
			a.Arm()
		}
	case "x":
		ctrl.Go("auto cycle", a.RunLast)
	case "t":
		ctrl.Go("auto cycle", a.Trigger)
	case "m":
		ctrl.Go("go home", sess.GoHome)
	case "p":
		ctrl.Go("go pick", sess.GoPick)
	case "M":
		sess.SetHome()
	case "P":
		sess.SetPick()

	case "C":
		ctrl.Go("connect", func(ctx context.Context) error {
			if ctrl.Connected() {
				return ctrl.Disconnect()
			}
			return ctrl.Connect(ctx)
		})
	}
	return false
}

func (m *consoleModel) jog(delta int) {
	cur := m.ctrl.Session().Engine().Current()
	if m.ctrl.Jog(m.selected, cur[m.selected]+delta) {
		m.ctrl.Release()
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Console closed.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("sppark"))
	sb.WriteString(" - ")
	sb.WriteString(labelStyle(m.status).Render(m.status.Label))
	if m.status.Connected {
		sb.WriteString(statusStyle.Render("  connected"))
	} else {
		sb.WriteString(stoppedStyle.Render("  offline"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n\n")

	// Info
	counts := m.status.Counts
	settings := m.ctrl.Session().Settings()
	sb.WriteString(fmt.Sprintf("Outbound %d  Return %d  Program %d", counts.Outbound, counts.Return, counts.Program))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("   steps %d  pause %s  throttle %s  send-on-release %v",
		settings.InterpSteps, settings.Pause, settings.Throttle, settings.SendOnRelease)))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render("↑↓ channel  ←→ ±1  HL ±10  enter send  c center  z zero  1/2/3 save  o/r/b play  g/G program  a arm  x run last  t trigger  m/p home/pick  M/P set  C connect  esc stop  q quit"))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func labelStyle(s console.Status) lipgloss.Style {
	switch {
	case strings.HasPrefix(s.Label, "STOP"):
		return stoppedStyle
	case s.Busy:
		return runningStyle
	case s.Auto.Armed():
		return armedStyle
	default:
		return statusStyle
	}
}

func (m consoleModel) renderLegend() string {
	var items []string
	for _, ch := range robot.AllChannels() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(channelColors[ch])).Bold(true)
		label := fmt.Sprintf("%s %3d", ch.Label(), m.status.Posture[ch])
		if ch == m.selected {
			label = selectedStyle.Render(label)
		}
		items = append(items, colorStyle.Render("━━")+" "+label)
	}
	return strings.Join(items, "  ")
}

func (c *ConsoleCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(logFile, cfg.LogLevel)

	ctrl, err := openConsole(cfg, logger)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl.WatchState(session.DefaultWatchDelay)

	var startup []string
	if !c.Offline && cfg.IsConfigured() {
		if err := ctrl.Connect(ctx); err != nil {
			logger.Error("connect failed", "error", err)
			startup = append(startup, "Connect failed: "+err.Error()+" (press C to retry)")
		}
	}

	if c.QR != "" {
		r, closeFn, err := openInput(c.QR)
		if err != nil {
			return err
		}
		defer closeFn()
		go func() {
			if err := ctrl.FeedPayloads(ctx, r); err != nil {
				logger.Warn("qr input ended", "error", err)
			}
		}()
	}

	p := tea.NewProgram(initialConsoleModel(ctrl, startup), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
