package tui

import (
	"time"

	"github.com/railwatch/crtm/internal/monitor"
)

// cycleDoneMsg carries the report of a finished monitor cycle.
type cycleDoneMsg struct {
	report monitor.Report
}

// cycleTickMsg starts the next scheduled cycle.
// seq is used for stale-tick detection after pausing or manual runs.
type cycleTickMsg struct {
	seq int
}

// countdownTickMsg is sent every second to update the countdown display.
type countdownTickMsg time.Time
