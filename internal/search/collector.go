package search

import (
	"sync"
)

// RouteKey groups findings for one logical route: the search date and the
// resolved boarding and alighting station names.
type RouteKey struct {
	Date string `json:"date"`
	From string `json:"from"`
	To   string `json:"to"`
}

func (k RouteKey) String() string {
	return k.Date + "_" + k.From + "_" + k.To
}

// RouteFindings is a snapshot of one route's findings
type RouteFindings struct {
	Route    RouteKey  `json:"route"`
	Findings []Finding `json:"findings"`
}

// Collector accumulates findings across every search of a monitor cycle.
// Routes and findings keep insertion order; a finding whose rendered line
// is already present under the route is dropped.
type Collector struct {
	mu     sync.Mutex
	order  []RouteKey
	routes map[RouteKey][]Finding
	seen   map[RouteKey]map[string]struct{}
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		routes: make(map[RouteKey][]Finding),
		seen:   make(map[RouteKey]map[string]struct{}),
	}
}

// Add records a finding under key and reports whether it was new
func (c *Collector) Add(key RouteKey, f Finding) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := f.Line()
	seen, ok := c.seen[key]
	if !ok {
		seen = make(map[string]struct{})
		c.seen[key] = seen
		c.order = append(c.order, key)
	}
	if _, dup := seen[line]; dup {
		return false
	}
	seen[line] = struct{}{}
	c.routes[key] = append(c.routes[key], f)
	return true
}

// Routes returns route keys in first-seen order
func (c *Collector) Routes() []RouteKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RouteKey(nil), c.order...)
}

// Findings returns a copy of the findings for key
func (c *Collector) Findings(key RouteKey) []Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Finding(nil), c.routes[key]...)
}

// Lines returns the rendered findings for key
func (c *Collector) Lines(key RouteKey) []string {
	findings := c.Findings(key)
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, f.Line())
	}
	return lines
}

// Len returns the number of routes with findings
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Total returns the number of findings across all routes
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, fs := range c.routes {
		n += len(fs)
	}
	return n
}

// Snapshot copies every route in order
func (c *Collector) Snapshot() []RouteFindings {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RouteFindings, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, RouteFindings{
			Route:    key,
			Findings: append([]Finding(nil), c.routes[key]...),
		})
	}
	return out
}

// Reset drops everything
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.routes = make(map[RouteKey][]Finding)
	c.seen = make(map[RouteKey]map[string]struct{})
}
