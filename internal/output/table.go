package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/railwatch/crtm/internal/cache"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/search"
)

// TableOptions configures the table output
type TableOptions struct {
	Colors    *Colors
	ShowLinks bool
	ShowPass  bool
}

func (o TableOptions) colors() *Colors {
	if o.Colors == nil {
		return NewColors(ColorNever)
	}
	return o.Colors
}

// RenderFindings renders findings grouped by route
func RenderFindings(w io.Writer, routes []search.RouteFindings, opts TableOptions) {
	if len(routes) == 0 {
		_, _ = fmt.Fprintln(w, "No tickets found.")
		return
	}

	c := opts.colors()

	for i, rf := range routes {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "%s %s → %s\n",
			c.Header(rf.Route.Date),
			c.Station(rf.Route.From),
			c.Station(rf.Route.To))

		for _, f := range rf.Findings {
			// Train code (padded to 6 chars)
			code := fmt.Sprintf("%-6s", f.Train)

			// TIME-TIME TOTAL TRAIN FROM→TO  SEATS
			_, _ = fmt.Fprintf(w, "  %s-%s %s  %s %s→%s  %s\n",
				c.Time(f.DepartTime),
				c.Time(f.ArriveTime),
				c.FormatTotal(f.Total),
				c.Train(code),
				f.FromName,
				f.ToName,
				c.Seats(f.Summary),
			)

			if opts.ShowPass && f.Pass != search.PassDirect {
				_, _ = fmt.Fprintf(w, "              %s\n", c.Muted("via %s extension", f.Pass))
			}
			if opts.ShowLinks && f.Link != "" {
				_, _ = fmt.Fprintf(w, "              %s\n", c.Link(f.Link))
			}
		}
	}
}

// RenderStations renders station lookups as a list
func RenderStations(w io.Writer, stations []models.Station, opts TableOptions) {
	if len(stations) == 0 {
		_, _ = fmt.Fprintln(w, "No stations found.")
		return
	}

	c := opts.colors()

	_, _ = fmt.Fprintln(w, c.Header("Found stations:"))
	_, _ = fmt.Fprintln(w)

	for _, s := range stations {
		_, _ = fmt.Fprintf(w, "  %s\n", c.Station(s.Name))
		_, _ = fmt.Fprintf(w, "    %s %s\n", c.Muted("Code:"), c.Train(s.Code))
	}
}

// RenderCacheStats renders cache statistics sorted by cache name
func RenderCacheStats(w io.Writer, stats map[string]cache.Stats, opts TableOptions) {
	c := opts.colors()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintln(w, c.Header("Caches:"))
	for _, name := range names {
		s := stats[name]
		_, _ = fmt.Fprintf(w, "  %-8s %s %d  %s %d  %s %d  %s %s\n",
			name,
			c.Muted("valid"), s.Valid,
			c.Muted("expired"), s.Expired,
			c.Muted("max"), s.MaxSize,
			c.Muted("ttl"), s.TTL,
		)
	}
}

// RenderStops renders a train's stop sequence, marking the segment between
// fromCode and toCode
func RenderStops(w io.Writer, train string, stops models.StopSequence, fromCode, toCode string, opts TableOptions) {
	if len(stops) == 0 {
		_, _ = fmt.Fprintln(w, "No stop data found.")
		return
	}

	c := opts.colors()

	_, _ = fmt.Fprintf(w, "%s %s\n\n", c.Header("Train:"), c.Train(train))

	from := stops.IndexOf(fromCode)
	to := stops.IndexOf(toCode)

	for i, stop := range stops {
		isFirst := i == 0
		isLast := i == len(stops)-1
		onSegment := from >= 0 && to >= 0 && i >= from && i <= to

		// Arrival time
		arrStr := "     "
		if !isFirst && stop.ArriveTime != "" && stop.ArriveTime != "----" {
			arrStr = stop.ArriveTime
		}

		// Departure time
		depStr := "     "
		if !isLast && stop.DepartTime != "" && stop.DepartTime != "----" {
			depStr = stop.DepartTime
		}

		// Connection symbol
		symbol := "├"
		if isFirst {
			symbol = "┌"
		} else if isLast {
			symbol = "└"
		}

		// Segment indicator
		indicator := " "
		if i == from || i == to {
			indicator = ">"
		}

		name := stop.StationName
		if onSegment {
			name = c.Station("%s", name)
		} else {
			name = c.Muted("%s", name)
		}

		_, _ = fmt.Fprintf(w, "%s %s %s  %s  %s\n",
			indicator,
			c.Muted(symbol),
			c.Time(arrStr),
			c.Time(depStr),
			name,
		)
	}
}
