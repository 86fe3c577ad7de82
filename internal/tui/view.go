package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/railwatch/crtm/internal/monitor"
	"github.com/railwatch/crtm/internal/search"
)

// chromeHeight is the header, info line and status bar
const chromeHeight = 3

// View renders the entire TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := renderHeader()
	info := m.renderInfoLine()
	statusBar := m.renderStatusBar()

	leftWidth, rightWidth, inner := m.layout()

	leftPanel := m.renderWatchList(leftWidth, inner)
	rightPanel := m.renderFindingsPanel(rightWidth)

	// Apply borders
	leftBorder := stylePanelNormal
	if m.focus == focusWatches {
		leftBorder = stylePanelFocused
	}
	leftPanel = leftBorder.
		Width(leftWidth).
		Height(inner).
		Render(leftPanel)

	rightBorder := stylePanelNormal
	if m.focus == focusFindings {
		rightBorder = stylePanelFocused
	}
	rightPanel = rightBorder.
		Width(rightWidth).
		Height(inner).
		Render(rightPanel)

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)

	return lipgloss.JoinVertical(lipgloss.Left, header, info, panels, statusBar)
}

// layout returns panel content widths and the inner panel height
func (m Model) layout() (left, right, inner int) {
	// Panel widths: ~35% left, ~65% right
	left = m.width*35/100 - 2 // subtract border
	right = m.width - left - 4
	if left < 20 {
		left = 20
	}
	if right < 20 {
		right = 20
	}

	inner = m.height - chromeHeight - 2
	if inner < 3 {
		inner = 3
	}
	return left, right, inner
}

// resizeFindings fits the findings viewport into the right panel
func (m Model) resizeFindings() Model {
	_, right, inner := m.layout()
	m.findings.Width = right
	m.findings.Height = inner - 1 // title line
	m.findings.SetContent(renderFindings(m.report, right))
	return m
}

// renderHeader renders the brand line.
func renderHeader() string {
	return styleLogo.Render("crtm") + styleMuted.Render("  12306 ticket monitor")
}

// renderInfoLine shows cycle progress, timing and cache usage.
func (m Model) renderInfoLine() string {
	var parts []string

	switch {
	case m.running:
		parts = append(parts, m.spinner.View()+styleLoading.Render(" Searching..."))
	case m.report.Cycle > 0:
		parts = append(parts, fmt.Sprintf("Cycle %d at %s (%s)",
			m.report.Cycle,
			m.report.Finished.Format("15:04:05"),
			m.report.Duration().Round(100*time.Millisecond),
		))
	}

	if m.paused {
		parts = append(parts, styleFew.Render("paused"))
	} else if !m.running && !m.nextCycle.IsZero() {
		parts = append(parts, "next in "+m.untilNext().Round(time.Second).String())
	}

	if n := len(m.report.Failures); n > 0 {
		parts = append(parts, styleError.Render(fmt.Sprintf("%d failed", n)))
	}

	if m.caches != nil {
		stats := m.caches.CacheStats()
		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := stats[name]
			parts = append(parts, styleMuted.Render(fmt.Sprintf("%s %d/%d", name, s.Valid, s.MaxSize)))
		}
	}

	return " " + strings.Join(parts, styleMuted.Render("  ·  "))
}

// renderWatchList renders the left panel: watch entries and the selected entry's details.
func (m Model) renderWatchList(width, height int) string {
	title := styleHeader.Render("WATCH")

	if len(m.watches) == 0 {
		return title + "\n" + styleMuted.Render(" No watch entries configured")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	// Leave room for the detail block below the list
	maxVisible := height - 7
	if maxVisible < 1 {
		maxVisible = 1
	}
	start, end := visibleRange(m.watchCursor, len(m.watches), maxVisible)

	for i := start; i < end; i++ {
		w := m.watches[i]
		name := truncate(w.From+" → "+w.To, width-4)
		if i == m.watchCursor {
			b.WriteString(styleSelected.Render(" > " + name))
		} else {
			b.WriteString("   " + name)
		}
		b.WriteString("\n")
	}

	if m.watchCursor < 0 || m.watchCursor >= len(m.watches) {
		return b.String()
	}
	w := m.watches[m.watchCursor]

	b.WriteString("\n")
	b.WriteString(styleMuted.Render(" Dates: ") + truncate(strings.Join(w.Date, ", "), width-9) + "\n")
	if len(w.SeatCategory) > 0 {
		seats := make([]string, 0, len(w.SeatCategory))
		for _, s := range w.SeatCategory {
			seats = append(seats, string(s))
		}
		b.WriteString(styleMuted.Render(" Seats: ") + truncate(strings.Join(seats, "/"), width-9) + "\n")
	}
	if len(w.Trains) > 0 {
		codes := make([]string, 0, len(w.Trains))
		for _, t := range w.Trains {
			codes = append(codes, t.Code)
		}
		b.WriteString(styleMuted.Render(" Trains: ") + truncate(strings.Join(codes, " "), width-10) + "\n")
	}
	if w.Remark != "" {
		b.WriteString(styleMuted.Render(" " + truncate(w.Remark, width-2)))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderFindingsPanel renders the right panel title and the findings viewport.
func (m Model) renderFindingsPanel(width int) string {
	title := "FINDINGS"
	if total := m.report.Total(); total > 0 {
		title += fmt.Sprintf(" (%d)", total)
	}
	return styleHeader.Render(truncate(title, width)) + "\n" + m.findings.View()
}

// renderFindings renders a cycle report: routes with their findings, then failures.
func renderFindings(r monitor.Report, width int) string {
	if r.Cycle == 0 {
		return styleMuted.Render(" Waiting for the first cycle...")
	}

	var b strings.Builder
	if len(r.Routes) == 0 {
		b.WriteString(styleMuted.Render(" No tickets found."))
		b.WriteString("\n")
	}

	for _, rf := range r.Routes {
		b.WriteString(styleHeader.Render(fmt.Sprintf(" %s %s → %s", rf.Route.Date, rf.Route.From, rf.Route.To)))
		b.WriteString("\n")
		for _, f := range rf.Findings {
			b.WriteString(renderFindingLine(f, width))
			b.WriteString("\n")
		}
	}

	for _, f := range r.Failures {
		b.WriteString(styleError.Render(truncate(
			fmt.Sprintf(" ! %s %s → %s: %s", f.Route.Date, f.Route.From, f.Route.To, f.Error), width)))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderFindingLine renders one finding entry.
func renderFindingLine(f search.Finding, width int) string {
	times := styleTime.Render(f.DepartTime) + "→" + styleTime.Render(f.ArriveTime)
	stations := styleStation.Render(f.FromName + "→" + f.ToName)

	// time+arrow+time + train + total + spacing
	fixed := 11 + 8 + 4 + 8
	summary := truncate(f.Summary, width-fixed-lipgloss.Width(f.FromName+"→"+f.ToName))

	entry := fmt.Sprintf("   %s  %s  %s  %s  %s",
		styleTrain.Render(fmt.Sprintf("%-6s", f.Train)),
		times,
		stations,
		formatTotal(f.Total),
		summary,
	)
	if f.Pass != "" && f.Pass != search.PassDirect {
		entry += styleMuted.Render(" (" + string(f.Pass) + ")")
	}
	return entry
}

// renderStatusBar renders context-aware keyboard hints at the bottom.
func (m Model) renderStatusBar() string {
	var hints string
	switch m.focus {
	case focusWatches:
		hints = "j/k:navigate  Enter:findings  Tab:findings  r:run now  p:pause  q:quit"
	case focusFindings:
		hints = "j/k:scroll  PgUp/PgDn:page  Esc:watch  Tab:watch  r:run now  p:pause  q:quit"
	}

	return styleStatusBar.Width(m.width).Render(" " + hints)
}

// visibleRange calculates the start and end indices for a scrollable list.
func visibleRange(cursor, total, maxVisible int) (int, int) {
	if total <= maxVisible {
		return 0, total
	}

	start := cursor - maxVisible/2
	if start < 0 {
		start = 0
	}
	end := start + maxVisible
	if end > total {
		end = total
		start = end - maxVisible
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// truncate shortens s to the given display width; wide characters count double.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}

	var b strings.Builder
	used := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width-1 {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + "~"
}
