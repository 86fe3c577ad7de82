package models

import (
	"strconv"
	"strings"
)

// Stop is one station in a train's stop sequence
type Stop struct {
	StationCode string `json:"stationCode"`
	StationName string `json:"stationName"`
	ArriveTime  string `json:"arriveTime"`
	DepartTime  string `json:"departTime"`
	StopIndex   int    `json:"stopIndex"`
}

// StopSequence is the ordered list of stops for one train number
type StopSequence []Stop

// IndexOf returns the position of the stop with the given station code, or -1
func (s StopSequence) IndexOf(code string) int {
	if code == "" {
		return -1
	}
	for i, stop := range s {
		if stop.StationCode == code {
			return i
		}
	}
	return -1
}

// Reversed returns a reversed copy of the sequence
func (s StopSequence) Reversed() StopSequence {
	out := make(StopSequence, len(s))
	for i, stop := range s {
		out[len(s)-1-i] = stop
	}
	return out
}

// StopResponse is one raw stop entry from the stop sequence query
type StopResponse struct {
	StationName      string `json:"station_name"`
	StationNo        string `json:"station_no"`
	ArriveTime       string `json:"arrive_time"`
	StartTime        string `json:"start_time"`
	StopoverTime     string `json:"stopover_time"`
	StationTrainCode string `json:"station_train_code"`
	IsEnabled        bool   `json:"isEnabled"`
}

// StopSequenceResponse is the raw stop sequence query response
type StopSequenceResponse struct {
	Status     bool `json:"status"`
	HTTPStatus int  `json:"httpstatus"`
	Data       struct {
		Data []StopResponse `json:"data"`
	} `json:"data"`
}

// ToStop converts the raw entry to a Stop. The station code is resolved by the caller.
func (r *StopResponse) ToStop(position int) Stop {
	stop := Stop{
		StationName: strings.TrimSpace(r.StationName),
		ArriveTime:  r.ArriveTime,
		DepartTime:  r.StartTime,
		StopIndex:   position,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(r.StationNo)); err == nil {
		stop.StopIndex = n
	}
	return stop
}
