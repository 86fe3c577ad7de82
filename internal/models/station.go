package models

import (
	"strings"
)

// Station is one entry of the upstream station table
type Station struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// StationTable is the bidirectional name/code mapping
type StationTable struct {
	byName map[string]string
	byCode map[string]string
}

// NewStationTable builds a table from a list of stations. Later duplicates win.
func NewStationTable(stations []Station) *StationTable {
	t := &StationTable{
		byName: make(map[string]string, len(stations)),
		byCode: make(map[string]string, len(stations)),
	}
	for _, s := range stations {
		if s.Name == "" || s.Code == "" {
			continue
		}
		t.byName[s.Name] = s.Code
		t.byCode[s.Code] = s.Name
	}
	return t
}

// ParseStationTable decodes the station_name.js resource. The payload is a
// JavaScript string literal of '@'-separated entries with '|'-separated fields
// where field 1 is the display name and field 2 the code.
func ParseStationTable(body string) *StationTable {
	payload := body
	if start := strings.IndexByte(body, '\''); start >= 0 {
		payload = body[start+1:]
		if end := strings.IndexByte(payload, '\''); end >= 0 {
			payload = payload[:end]
		}
	}

	entries := strings.Split(payload, "@")
	stations := make([]Station, 0, len(entries))
	// The first chunk precedes the first '@' and carries no station
	for _, entry := range entries[1:] {
		fields := strings.Split(entry, "|")
		if len(fields) < 3 {
			continue
		}
		stations = append(stations, Station{
			Name: strings.TrimSpace(fields[1]),
			Code: strings.TrimSpace(fields[2]),
		})
	}
	return NewStationTable(stations)
}

// CodeOf returns the code for a display name
func (t *StationTable) CodeOf(name string) (string, bool) {
	code, ok := t.byName[name]
	return code, ok
}

// NameOf returns the display name for a code
func (t *StationTable) NameOf(code string) (string, bool) {
	name, ok := t.byCode[code]
	return name, ok
}

// Len returns the number of distinct codes
func (t *StationTable) Len() int {
	return len(t.byCode)
}
