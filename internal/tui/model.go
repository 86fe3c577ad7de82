// Package tui is a full-screen dashboard over the ticket monitor.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/railwatch/crtm/internal/cache"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/monitor"
)

// Runner runs monitor cycles. *monitor.Monitor implements it.
type Runner interface {
	RunCycle(ctx context.Context) monitor.Report
	Watches() []models.SearchConfig
	Interval() time.Duration
}

// CacheSource reports cache statistics. *api.Client implements it.
type CacheSource interface {
	CacheStats() map[string]cache.Stats
}

var _ Runner = (*monitor.Monitor)(nil)

type focusPanel int

const (
	focusWatches focusPanel = iota
	focusFindings
)

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	ctx    context.Context
	runner Runner
	caches CacheSource
	width  int
	height int

	focus focusPanel

	// Left panel - watch entries
	watches     []models.SearchConfig
	watchCursor int

	// Right panel - findings of the last cycle
	findings viewport.Model
	report   monitor.Report

	// Cycle scheduling
	spinner   spinner.Model
	running   bool
	paused    bool
	tickSeq   int
	nextCycle time.Time
	now       func() time.Time
}

// New creates a new TUI model. caches may be nil.
func New(ctx context.Context, runner Runner, caches CacheSource) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleLoading))

	return Model{
		ctx:      ctx,
		runner:   runner,
		caches:   caches,
		focus:    focusWatches,
		watches:  runner.Watches(),
		findings: viewport.New(0, 0),
		spinner:  sp,
		running:  true,
		now:      time.Now,
	}
}

// Init starts the first cycle, the spinner and the countdown.
func (m Model) Init() tea.Cmd {
	return tea.Batch(runCycle(m.ctx, m.runner), m.spinner.Tick, countdownTick())
}

// untilNext returns the time left before the next scheduled cycle
func (m Model) untilNext() time.Duration {
	if m.nextCycle.IsZero() {
		return 0
	}
	d := m.nextCycle.Sub(m.now())
	if d < 0 {
		return 0
	}
	return d
}
