package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRecord indicates a raw train record could not be decoded
var ErrMalformedRecord = errors.New("malformed train record")

// Fixed field offsets in a raw pipe-delimited train record
const (
	fieldSecret        = 0
	fieldButtonText    = 1
	fieldTrainNo       = 2
	fieldTrainCode     = 3
	fieldStartStation  = 4
	fieldEndStation    = 5
	fieldFromStation   = 6
	fieldToStation     = 7
	fieldStartTime     = 8
	fieldArriveTime    = 9
	fieldDuration      = 10
	fieldCanWebBuy     = 11
	fieldYPInfo        = 12
	fieldStartDate     = 13
	fieldFirstSeat     = 20
	fieldSeatTypes     = 35
	recordDelimiter    = "|"
	minRecordFields    = fieldStartDate + 1
	startDateLayout    = "20060102"
)

// seatOffsets maps each category to its record offset
var seatOffsets = func() map[SeatCategory]int {
	m := make(map[SeatCategory]int, len(SeatCategories))
	for i, c := range SeatCategories {
		m[c] = fieldFirstSeat + i
	}
	return m
}()

// ParseError reports a record with fewer fields than the required prefix
type ParseError struct {
	Fields int
	Min    int
	Record string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed train record: %d fields, need at least %d", e.Fields, e.Min)
}

// Is implements errors.Is for ParseError
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// ParsedTrain is one decoded train record
type ParsedTrain struct {
	TrainNo          string                 `json:"trainNo"`
	Code             string                 `json:"code"`
	StartStationCode string                 `json:"startStationCode"`
	EndStationCode   string                 `json:"endStationCode"`
	FromStationCode  string                 `json:"fromStationCode"`
	ToStationCode    string                 `json:"toStationCode"`
	DepartTime       string                 `json:"departTime"`
	ArriveTime       string                 `json:"arriveTime"`
	Duration         string                 `json:"duration"`
	CanWebBuy        string                 `json:"canWebBuy"`
	StartDate        string                 `json:"startDate"`
	SeatTypes        string                 `json:"seatTypes,omitempty"`
	Seats            map[SeatCategory]Token `json:"-"`
}

// ParseTrain decodes one raw record. Missing seat fields become empty tokens.
func ParseTrain(raw string) (*ParsedTrain, error) {
	fields := strings.Split(raw, recordDelimiter)
	if len(fields) < minRecordFields {
		return nil, &ParseError{Fields: len(fields), Min: minRecordFields, Record: raw}
	}

	t := &ParsedTrain{
		TrainNo:          fields[fieldTrainNo],
		Code:             fields[fieldTrainCode],
		StartStationCode: fields[fieldStartStation],
		EndStationCode:   fields[fieldEndStation],
		FromStationCode:  fields[fieldFromStation],
		ToStationCode:    fields[fieldToStation],
		DepartTime:       fields[fieldStartTime],
		ArriveTime:       fields[fieldArriveTime],
		Duration:         fields[fieldDuration],
		CanWebBuy:        fields[fieldCanWebBuy],
		StartDate:        fields[fieldStartDate],
		SeatTypes:        fieldAt(fields, fieldSeatTypes),
		Seats:            make(map[SeatCategory]Token, len(SeatCategories)),
	}
	for category, offset := range seatOffsets {
		t.Seats[category] = ParseToken(fieldAt(fields, offset))
	}
	return t, nil
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// DepartDate returns StartDate as YYYY-MM-DD, or the raw value if it is not YYYYMMDD
func (t *ParsedTrain) DepartDate() string {
	if len(t.StartDate) == len(startDateLayout) {
		return t.StartDate[0:4] + "-" + t.StartDate[4:6] + "-" + t.StartDate[6:8]
	}
	return t.StartDate
}

// Token returns the token for one category
func (t *ParsedTrain) Token(c SeatCategory) Token {
	return t.Seats[c]
}

// DepartHour returns the hour of DepartTime, or -1 if it is not HH:MM
func (t *ParsedTrain) DepartHour() int {
	m, ok := clockMinutes(t.DepartTime)
	if !ok {
		return -1
	}
	return m / 60
}

// ArriveHour returns the arrival hour counted from the departure day, so a
// train arriving after midnight reports 24 or more.
func (t *ParsedTrain) ArriveHour() int {
	start, okStart := clockMinutes(t.DepartTime)
	dur, okDur := clockMinutes(t.Duration)
	if okStart && okDur {
		return (start + dur) / 60
	}
	arrive, ok := clockMinutes(t.ArriveTime)
	if !ok {
		return -1
	}
	hour := arrive / 60
	if okStart && arrive < start {
		hour += 24
	}
	return hour
}

// clockMinutes parses "HH:MM" into minutes
func clockMinutes(s string) (int, bool) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}
