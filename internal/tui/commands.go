package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// countdownTick returns a tea.Cmd that sends a tick every second for countdown display.
func countdownTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return countdownTickMsg(t)
	})
}

// scheduleCycle returns a tea.Cmd that starts cycle seq after d.
func scheduleCycle(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return cycleTickMsg{seq: seq}
	})
}

// runCycle returns a tea.Cmd that runs one monitor cycle.
func runCycle(ctx context.Context, runner Runner) tea.Cmd {
	return func() tea.Msg {
		return cycleDoneMsg{report: runner.RunCycle(ctx)}
	}
}
