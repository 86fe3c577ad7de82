package monitor

import (
	"time"

	"github.com/railwatch/crtm/internal/search"
)

// Failure is a search that returned an error during a cycle
type Failure struct {
	Route search.RouteKey `json:"route"`
	Error string          `json:"error"`
}

// Report summarises one cycle
type Report struct {
	Cycle    int                    `json:"cycle"`
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
	Searches int                    `json:"searches"`
	Skipped  []search.RouteKey      `json:"skipped,omitempty"`
	Failures []Failure              `json:"failures,omitempty"`
	Routes   []search.RouteFindings `json:"routes"`
}

// Duration returns how long the cycle took
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Total returns the number of findings across routes
func (r Report) Total() int {
	n := 0
	for _, rf := range r.Routes {
		n += len(rf.Findings)
	}
	return n
}
