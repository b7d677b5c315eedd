// ABOUTME: Bubbletea model for the mixer monitor
// ABOUTME: Defines channel, latency and warning state and the key bindings
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Resonate-Protocol/cuemix/internal/player"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
	clocksync "github.com/Resonate-Protocol/cuemix/pkg/sync"
)

// maxWarnings is how many recent warnings the monitor keeps
const maxWarnings = 5

// Model represents the TUI state
type Model struct {
	title string

	// Engine
	running    bool
	sampleRate int
	latency    time.Duration
	deviceTime time.Duration
	buffers    uint64
	channels   []mixer.ChannelStatus
	lastError  string
	warnings   []string

	// Clock
	syncQuality clocksync.Quality
	syncDrift   float64
	syncJumps   int

	// Scheduler
	received int64
	played   int64
	dropped  int64
	retried  int64

	showDebug bool
	startTime time.Time
	quitting  bool
	controls  *Controls

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down mixer...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.renderEngine())
	b.WriteString(m.renderChannels())
	b.WriteString(m.renderWarnings())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name + ": "))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// renderEngine renders stream and clock status
func (m Model) renderEngine() string {
	var b strings.Builder

	state := "Stopped"
	if m.running {
		state = fmt.Sprintf("Running at %s Hz", humanize.Comma(int64(m.sampleRate)))
	}
	field(&b, "Engine", state)
	field(&b, "Latency", fmt.Sprintf("%.1fms", float64(m.latency)/float64(time.Millisecond)))
	field(&b, "Buffers", humanize.Comma(int64(m.buffers)))

	syncIcon := "✗"
	switch m.syncQuality {
	case clocksync.QualityGood:
		syncIcon = "✓"
	case clocksync.QualityDegraded:
		syncIcon = "⚠"
	}
	field(&b, "Clock", fmt.Sprintf("%s %s (drift %+.1fppm)", syncIcon, m.syncQuality, m.syncDrift*1e6))
	field(&b, "Cues", fmt.Sprintf("queued %s  played %s  dropped %s  retried %s",
		humanize.Comma(m.received), humanize.Comma(m.played),
		humanize.Comma(m.dropped), humanize.Comma(m.retried)))
	b.WriteString("\n")
	return b.String()
}

// renderChannels renders one line per queue
func (m Model) renderChannels() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Channels (%d)", len(m.channels))))
	b.WriteString("\n")

	if len(m.channels) == 0 {
		b.WriteString(valueStyle.Render("  No channels"))
		b.WriteString("\n")
	}
	for _, ch := range m.channels {
		kind := "shot"
		if ch.Streaming {
			kind = "strm"
		}
		line := fmt.Sprintf("  %s %2d [%s] %d/%d  free in %s",
			kind, ch.Index+1,
			renderBar(ch.Pending, ch.Capacity, 8),
			ch.Pending, ch.Capacity,
			freeIn(ch.DoneAt, m.deviceTime))
		if ch.Paused {
			b.WriteString(pausedStyle.Render(line + "  paused"))
		} else {
			b.WriteString(valueStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// renderWarnings renders recent timing warnings and the last error
func (m Model) renderWarnings() string {
	var b strings.Builder
	for _, w := range m.warnings {
		b.WriteString(warnStyle.Render("⚠ " + w))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("✗ " + m.lastError))
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Debug"))
	b.WriteString("\n")
	field(&b, "  Device time", m.deviceTime.String())
	field(&b, "  Clock jumps", fmt.Sprintf("%d", m.syncJumps))
	field(&b, "  Uptime", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")
	return b.String()
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return lipgloss.NewStyle().Faint(true).Render("1-9:Pause channel  space:Pause all  t:Test cue  d:Debug  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.controls.send(ControlMsg{Action: ActionQuit})
		return m, tea.Quit
	case " ", "space":
		m.controls.send(ControlMsg{Action: ActionTogglePauseAll})
	case "t":
		m.controls.send(ControlMsg{Action: ActionTrigger})
	case "d":
		m.showDebug = !m.showDebug
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.controls.send(ControlMsg{Action: ActionTogglePause, Channel: int(key[0] - '1')})
		}
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Engine != nil {
		st := msg.Engine
		m.running = st.Running
		m.sampleRate = st.SampleRate
		m.latency = st.Latency
		m.deviceTime = st.DeviceTime
		m.buffers = st.Buffers
		m.channels = st.Channels
		m.lastError = st.LastError
	}
	if msg.Warning != "" {
		m.warnings = append(m.warnings, msg.Warning)
		if len(m.warnings) > maxWarnings {
			m.warnings = m.warnings[len(m.warnings)-maxWarnings:]
		}
	}
	if msg.Clock != nil {
		m.syncQuality = msg.Clock.Quality
		m.syncDrift = msg.Clock.Drift
		m.syncJumps = msg.Clock.Jumps
	}
	if msg.Scheduler != nil {
		m.received = msg.Scheduler.Received
		m.played = msg.Scheduler.Played
		m.dropped = msg.Scheduler.Dropped
		m.retried = msg.Scheduler.Retried
	}
}

// StatusMsg updates TUI state. Nil sections are left unchanged.
type StatusMsg struct {
	Engine    *mixer.Status
	Warning   string
	Clock     *clocksync.Stats
	Scheduler *player.SchedulerStats
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := min((value*width)/max, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func freeIn(doneAt, now time.Duration) string {
	if doneAt <= now {
		return "now"
	}
	return (doneAt - now).Round(time.Millisecond).String()
}
