package search

import (
	"fmt"
	"strings"
)

// Pass identifies which discovery pass produced a finding
type Pass string

const (
	PassDirect      Pass = "direct"
	PassDestination Pass = "destination"
	PassOrigin      Pass = "origin"
	PassBoth        Pass = "both"
)

// Finding is one train with remaining tickets
type Finding struct {
	Train      string `json:"train"`
	TrainNo    string `json:"trainNo"`
	FromName   string `json:"fromName"`
	FromCode   string `json:"fromCode"`
	ToName     string `json:"toName"`
	ToCode     string `json:"toCode"`
	DepartTime string `json:"departTime"`
	ArriveTime string `json:"arriveTime"`
	Summary    string `json:"summary"`
	Total      string `json:"total"`
	Link       string `json:"link"`
	Pass       Pass   `json:"pass"`
}

// Description renders "G101 A→B(08:00->10:30)"
func (f Finding) Description() string {
	return fmt.Sprintf("%s %s→%s(%s->%s)", f.Train, f.FromName, f.ToName, f.DepartTime, f.ArriveTime)
}

// Line renders the finding as a two-line Markdown entry: the description with
// the seat summary, then the booking link.
func (f Finding) Line() string {
	var b strings.Builder
	b.WriteString(f.Description())
	b.WriteString(" ")
	b.WriteString(f.Summary)
	if f.Link != "" {
		b.WriteString("\n[Book](")
		b.WriteString(f.Link)
		b.WriteString(")")
	}
	return b.String()
}
