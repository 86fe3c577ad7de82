package tui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Colors matching the output package scheme
var (
	colorCyan    = lipgloss.Color("6")  // Cyan - trains
	colorYellow  = lipgloss.Color("3")  // Yellow - few seats, running
	colorRed     = lipgloss.Color("1")  // Red - failures
	colorGreen   = lipgloss.Color("2")  // Green - plenty of seats
	colorMagenta = lipgloss.Color("5")  // Magenta - stations
	colorWhite   = lipgloss.Color("15") // White - times, text
	colorGray    = lipgloss.Color("8")  // Gray - muted text
)

// Text styles
var (
	styleTime    = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
	styleTrain   = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	styleStation = lipgloss.NewStyle().Foreground(colorMagenta)
	stylePlenty  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleFew     = lipgloss.NewStyle().Foreground(colorYellow)
	styleMuted   = lipgloss.NewStyle().Foreground(colorGray)
	styleHeader  = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
)

// Panel border styles
var (
	stylePanelFocused = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorCyan)

	stylePanelNormal = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorGray)
)

// Selected item in a list
var styleSelected = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)

// Status bar at the bottom
var styleStatusBar = lipgloss.NewStyle().
	Foreground(colorGray).
	Background(lipgloss.Color("0"))

// Running indicator
var styleLoading = lipgloss.NewStyle().Foreground(colorYellow).Italic(true)

// Error text
var styleError = lipgloss.NewStyle().Foreground(colorRed)

// Logo/brand style
var styleLogo = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

// formatTotal styles a seat total label (4-char width)
func formatTotal(label string) string {
	s := label
	for lipgloss.Width(s) < 4 {
		s = " " + s
	}
	if n, err := strconv.Atoi(label); err == nil && n < 5 {
		return styleFew.Render(s)
	}
	return stylePlenty.Render(s)
}
