// Package monitor runs the polling loop: every cycle searches each watch
// entry's dates, then sends one notification per route with findings.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/railwatch/crtm/internal/api"
	"github.com/railwatch/crtm/internal/config"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/notify"
	"github.com/railwatch/crtm/internal/search"
	"github.com/railwatch/crtm/internal/telemetry"
)

// WindowDays is how far ahead a travel date may lie and still be searched
const WindowDays = 15

// Searcher runs one search into a collector. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, cfg models.SearchConfig, date string, collector *search.Collector) error
}

// Notifier delivers messages. *notify.Manager implements it.
type Notifier interface {
	SendAll(ctx context.Context, msg notify.Message) error
}

// History stores reported findings
type History interface {
	Record(ctx context.Context, route search.RouteKey, findings []search.Finding) error
}

var (
	_ Searcher = (*search.Engine)(nil)
	_ Notifier = (*notify.Manager)(nil)
)

// Monitor owns the outer loop
type Monitor struct {
	cfg      *config.Config
	engine   Searcher
	notifier Notifier
	history  History
	logger   *slog.Logger
	tracer   trace.Tracer
	loc      *time.Location
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	last   Report
	cycles int
}

// Option configures a Monitor
type Option func(*Monitor)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// WithHistory stores every flushed finding
func WithHistory(h History) Option {
	return func(m *Monitor) {
		m.history = h
	}
}

// WithLocation sets the zone used to decide "today"
func WithLocation(loc *time.Location) Option {
	return func(m *Monitor) {
		m.loc = loc
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithSleep replaces the context-aware sleep used for delay and interval
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) {
		m.sleep = sleep
	}
}

// New creates a monitor for cfg
func New(cfg *config.Config, engine Searcher, notifier Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		engine:   engine,
		notifier: notifier,
		logger:   slog.Default(),
		tracer:   telemetry.Tracer("monitor"),
		loc:      api.ChinaTimezone(),
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Watches returns the configured watch entries
func (m *Monitor) Watches() []models.SearchConfig {
	return m.cfg.Watch
}

// Interval returns the pause between cycles
func (m *Monitor) Interval() time.Duration {
	return m.cfg.IntervalDuration()
}

// LastReport returns the most recent cycle report; Cycle is 0 before the first
func (m *Monitor) LastReport() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run sends a startup notification and then runs cycles until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		"watch", len(m.cfg.Watch),
		"interval", m.cfg.IntervalDuration(),
		"delay", m.cfg.DelayDuration(),
	)

	if err := m.notifier.SendAll(ctx, notify.Message{
		Time:    m.now(),
		Content: fmt.Sprintf("Monitoring started for %d watch entries.", len(m.cfg.Watch)),
	}); err != nil {
		m.logger.Warn("startup notification failed", "error", err)
	}

	for {
		report := m.RunCycle(ctx)
		if ctx.Err() != nil {
			m.logger.Info("monitor stopped")
			return ctx.Err()
		}

		m.logger.Info("cycle finished",
			"cycle", report.Cycle,
			"searches", report.Searches,
			"routes", len(report.Routes),
			"findings", report.Total(),
			"failures", len(report.Failures),
			"duration", report.Duration().Round(time.Millisecond),
			"next_in", m.cfg.IntervalDuration(),
		)

		if err := m.sleep(ctx, m.cfg.IntervalDuration()); err != nil {
			m.logger.Info("monitor stopped")
			return err
		}
	}
}

// RunCycle searches every watch entry once, flushes findings and returns
// the cycle report. Search failures are reported and do not stop the cycle.
func (m *Monitor) RunCycle(ctx context.Context) Report {
	ctx, span := m.tracer.Start(ctx, "monitor.cycle",
		trace.WithAttributes(attribute.Int("watch_count", len(m.cfg.Watch))),
	)
	defer span.End()

	report := Report{Started: m.now()}
	collector := search.NewCollector()
	searched := false

cycle:
	for _, watch := range m.cfg.Watch {
		for _, date := range watch.Date {
			if ctx.Err() != nil {
				break cycle
			}

			key := search.RouteKey{Date: date, From: watch.From, To: watch.To}
			if !m.inWindow(date, report.Started) {
				m.logger.Warn("date outside search window, skipping", "route", key.String(), "window_days", WindowDays)
				report.Skipped = append(report.Skipped, key)
				continue
			}

			if searched {
				if err := m.sleep(ctx, m.cfg.DelayDuration()); err != nil {
					break cycle
				}
			}
			searched = true

			report.Searches++
			if err := m.engine.Search(ctx, watch, date, collector); err != nil {
				if ctx.Err() != nil {
					break cycle
				}
				m.searchFailed(ctx, key, err)
				report.Failures = append(report.Failures, Failure{Route: key, Error: err.Error()})
			}
		}
	}

	report.Routes = collector.Snapshot()
	m.flush(ctx, report.Routes)
	report.Finished = m.now()

	span.SetAttributes(
		attribute.Int("searches", report.Searches),
		attribute.Int("findings", report.Total()),
		attribute.Int("failures", len(report.Failures)),
	)
	if len(report.Failures) > 0 {
		span.SetStatus(codes.Error, "search failures")
	}
	telemetry.RecordCycle(ctx, report.Duration(), len(report.Failures) > 0)

	m.mu.Lock()
	m.cycles++
	report.Cycle = m.cycles
	m.last = report
	m.mu.Unlock()

	return report
}

func (m *Monitor) inWindow(date string, now time.Time) bool {
	day, err := time.ParseInLocation("2006-01-02", date, m.loc)
	if err != nil {
		return false
	}
	local := now.In(m.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc)
	return !day.Before(today) && !day.After(today.AddDate(0, 0, WindowDays))
}

func (m *Monitor) searchFailed(ctx context.Context, key search.RouteKey, err error) {
	m.logger.Error("search failed",
		"route", key.String(),
		"network", errors.Is(err, api.ErrNetwork),
		"error", err,
	)

	if sendErr := m.notifier.SendAll(ctx, notify.Message{
		Title:   fmt.Sprintf("Search failed: %s %s → %s", key.Date, key.From, key.To),
		Time:    m.now(),
		Content: err.Error(),
	}); sendErr != nil {
		m.logger.Warn("error notification failed", "error", sendErr)
	}
}

// flush sends one notification per route and appends findings to history
func (m *Monitor) flush(ctx context.Context, routes []search.RouteFindings) {
	for _, rf := range routes {
		if len(rf.Findings) == 0 {
			continue
		}

		m.logger.Info("tickets found", "route", rf.Route.String(), "count", len(rf.Findings))

		msg := notify.Message{
			Title:   fmt.Sprintf("Tickets found: %s %s → %s", rf.Route.Date, rf.Route.From, rf.Route.To),
			Time:    m.now(),
			Content: markdownList(rf.Findings),
		}
		if err := m.notifier.SendAll(ctx, msg); err != nil {
			m.logger.Warn("findings notification failed", "route", rf.Route.String(), "error", err)
		}

		if m.history != nil {
			if err := m.history.Record(ctx, rf.Route, rf.Findings); err != nil {
				m.logger.Warn("failed to record history", "route", rf.Route.String(), "error", err)
			}
		}
	}
}

// markdownList renders findings as list items, indenting continuation lines
// so multi-line findings stay inside their item
func markdownList(findings []search.Finding) string {
	items := make([]string, 0, len(findings))
	for _, f := range findings {
		items = append(items, "- "+strings.ReplaceAll(f.Line(), "\n", "\n  "))
	}
	return strings.Join(items, "\n")
}
