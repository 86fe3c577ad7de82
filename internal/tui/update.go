package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all messages and key events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.resizeFindings()
		return m, nil

	case cycleDoneMsg:
		return m.handleCycleDone(msg)

	case cycleTickMsg:
		return m.handleCycleTick(msg)

	case countdownTickMsg:
		return m, countdownTick()

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleCycleDone(msg cycleDoneMsg) (tea.Model, tea.Cmd) {
	m.running = false
	m.report = msg.report
	m.findings.SetContent(renderFindings(m.report, m.findings.Width))
	m.findings.GotoTop()

	if m.paused {
		m.nextCycle = time.Time{}
		return m, nil
	}
	return m.schedule()
}

func (m Model) handleCycleTick(msg cycleTickMsg) (tea.Model, tea.Cmd) {
	// Ignore stale ticks
	if msg.seq != m.tickSeq || m.paused || m.running {
		return m, nil
	}
	return m.start()
}

// schedule arms the next cycle after the monitor interval
func (m Model) schedule() (Model, tea.Cmd) {
	m.tickSeq++
	interval := m.runner.Interval()
	m.nextCycle = m.now().Add(interval)
	return m, scheduleCycle(interval, m.tickSeq)
}

// start runs a cycle now, invalidating any pending tick
func (m Model) start() (Model, tea.Cmd) {
	m.tickSeq++
	m.running = true
	m.nextCycle = time.Time{}
	return m, tea.Batch(runCycle(m.ctx, m.runner), m.spinner.Tick)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "r":
		if m.running {
			return m, nil
		}
		return m.start()

	case "p":
		m.paused = !m.paused
		if m.paused {
			m.tickSeq++
			m.nextCycle = time.Time{}
			return m, nil
		}
		if m.running {
			return m, nil
		}
		return m.schedule()

	case "tab", "shift+tab":
		if m.focus == focusWatches {
			m.focus = focusFindings
		} else {
			m.focus = focusWatches
		}
		return m, nil
	}

	switch m.focus {
	case focusWatches:
		return m.handleWatchKeys(msg)
	case focusFindings:
		return m.handleFindingsKeys(msg)
	}

	return m, nil
}

func (m Model) handleWatchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.watchCursor < len(m.watches)-1 {
			m.watchCursor++
		}
	case "k", "up":
		if m.watchCursor > 0 {
			m.watchCursor--
		}
	case "home":
		m.watchCursor = 0
	case "end":
		if len(m.watches) > 0 {
			m.watchCursor = len(m.watches) - 1
		}
	case "enter":
		m.focus = focusFindings
	}
	return m, nil
}

func (m Model) handleFindingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusWatches
		return m, nil
	case "home":
		m.findings.GotoTop()
		return m, nil
	case "end":
		m.findings.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.findings, cmd = m.findings.Update(msg)
	return m, cmd
}
