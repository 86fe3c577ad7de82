package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sample payloads for upstream testing

// SampleStationTable is a minimal station_name.js resource
const SampleStationTable = `var station_names ='@aaa|A|AAA|a|aaa|0@bbb|B|BBB|b|bbb|1@ccc|C|CCC|c|ccc|2@ddd|D|DDD|d|ddd|3@eee|E|EEE|e|eee|4@gzn|广州南|IZQ|guangzhounan|gzn|5@csn|长沙南|CWQ|changshanan|csn|6@whn|武汉|WHN|wuhan|wh|7@bxp|北京西|BXP|beijingxi|bjx|8';`

// SampleStatusFalseResponse is a ticket query rejected upstream
const SampleStatusFalseResponse = `{"status":false,"httpstatus":200,"messages":["系统繁忙"],"data":{}}`

// SampleEmptyResponse is an empty JSON response
const SampleEmptyResponse = `{}`

// seatNames lists seat categories in record order (offsets 20..33)
var seatNames = []string{
	"优选一等座", "高级软卧", "其他", "软卧", "软座", "特等座", "无座",
	"YB", "硬卧", "硬座", "二等座", "一等座", "商务座", "SRRB",
}

// recordWidth is the field count of a full upstream record
const recordWidth = 56

// TrainRecord describes a raw ticket record for tests
type TrainRecord struct {
	TrainNo    string
	Code       string
	Start      string
	End        string
	From       string
	To         string
	DepartTime string
	ArriveTime string
	Duration   string
	StartDate  string
	Seats      map[string]string
}

// String renders the record as the upstream pipe-delimited line
func (r TrainRecord) String() string {
	fields := make([]string, recordWidth)
	fields[0] = "secret"
	fields[1] = "预订"
	fields[2] = r.TrainNo
	fields[3] = r.Code
	fields[4] = orDefault(r.Start, r.From)
	fields[5] = orDefault(r.End, r.To)
	fields[6] = r.From
	fields[7] = r.To
	fields[8] = r.DepartTime
	fields[9] = r.ArriveTime
	fields[10] = r.Duration
	fields[11] = "Y"
	fields[13] = r.StartDate
	for i, name := range seatNames {
		if tok, ok := r.Seats[name]; ok {
			fields[20+i] = tok
		}
	}
	return strings.Join(fields, "|")
}

// Truncated returns the record with the last n fields removed
func (r TrainRecord) Truncated(n int) string {
	fields := strings.Split(r.String(), "|")
	if n > len(fields) {
		n = len(fields)
	}
	return strings.Join(fields[:len(fields)-n], "|")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// TicketResponse wraps raw records in a ticket query response body
func TicketResponse(records ...string) string {
	if records == nil {
		records = []string{}
	}
	payload := map[string]any{
		"httpstatus": 200,
		"status":     true,
		"data": map[string]any{
			"flag":   "1",
			"result": records,
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// StopFixture is one stop of a stop sequence response
type StopFixture struct {
	Name   string
	Arrive string
	Depart string
}

// StopSequenceResponse renders a stop sequence query response body
func StopSequenceResponse(stops ...StopFixture) string {
	entries := make([]map[string]any, 0, len(stops))
	for i, s := range stops {
		entries = append(entries, map[string]any{
			"station_name":  s.Name,
			"station_no":    fmt.Sprintf("%02d", i+1),
			"arrive_time":   orDefault(s.Arrive, "----"),
			"start_time":    orDefault(s.Depart, "----"),
			"stopover_time": "----",
			"isEnabled":     true,
		})
	}
	payload := map[string]any{
		"status":     true,
		"httpstatus": 200,
		"data":       map[string]any{"data": entries},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}
