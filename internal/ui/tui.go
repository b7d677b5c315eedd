// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and relays key actions back to the caller
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	clocksync "github.com/Resonate-Protocol/cuemix/pkg/sync"
)

// Action is a user request from the monitor
type Action int

const (
	ActionQuit Action = iota
	ActionTogglePause
	ActionTogglePauseAll
	ActionTrigger
)

// ControlMsg carries a key action to the caller
type ControlMsg struct {
	Action  Action
	Channel int
}

// Controls holds the channel for key actions
type Controls struct {
	Actions chan ControlMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan ControlMsg, 10),
	}
}

// send never blocks the UI loop
func (c *Controls) send(msg ControlMsg) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- msg:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(title string, controls *Controls) Model {
	return Model{
		title:       title,
		syncQuality: clocksync.QualityLost,
		startTime:   time.Now(),
		controls:    controls,
	}
}

// Monitor runs the TUI and forwards status updates into it
type Monitor struct {
	program  *tea.Program
	updates  chan StatusMsg
	controls *Controls
}

// NewMonitor creates a monitor with its own controls
func NewMonitor(title string) *Monitor {
	controls := NewControls()
	return &Monitor{
		program:  tea.NewProgram(NewModel(title, controls), tea.WithAltScreen()),
		updates:  make(chan StatusMsg, 10),
		controls: controls,
	}
}

// Run blocks until the user quits
func (mon *Monitor) Run() error {
	go func() {
		for status := range mon.updates {
			mon.program.Send(status)
		}
	}()

	_, err := mon.program.Run()
	return err
}

// Update sends a status update to the TUI
func (mon *Monitor) Update(status StatusMsg) {
	select {
	case mon.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Controls returns the key action channel
func (mon *Monitor) Controls() <-chan ControlMsg {
	return mon.controls.Actions
}

// Stop stops the TUI
func (mon *Monitor) Stop() {
	mon.program.Quit()
	close(mon.updates)
}
