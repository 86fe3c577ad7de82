package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/railwatch/crtm/internal/api"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/testutil"
)

const testDate = "2026-10-20"

// fakeRailway serves canned tickets and stop sequences keyed by station pair
// and train number
type fakeRailway struct {
	codes     map[string]string
	tickets   map[string][]string
	ticketErr map[string]error
	stops     map[string]models.StopSequence
	stopErr   map[string]error

	queries   []models.Query
	stopCalls map[string]int
}

func newFakeRailway() *fakeRailway {
	return &fakeRailway{
		codes: map[string]string{
			"A": "AAA", "B": "BBB", "C": "CCC", "D": "DDD", "E": "EEE",
		},
		tickets:   make(map[string][]string),
		ticketErr: make(map[string]error),
		stops:     make(map[string]models.StopSequence),
		stopErr:   make(map[string]error),
		stopCalls: make(map[string]int),
	}
}

func (f *fakeRailway) StationCode(ctx context.Context, name string) (string, error) {
	if code, ok := f.codes[name]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", api.ErrStationNotFound, name)
}

func (f *fakeRailway) StationName(ctx context.Context, code string) (string, error) {
	for name, c := range f.codes {
		if c == code {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", api.ErrStationNotFound, code)
}

func (f *fakeRailway) QueryTickets(ctx context.Context, q models.Query) ([]string, error) {
	f.queries = append(f.queries, q)
	key := q.FromCode + "|" + q.ToCode
	if err := f.ticketErr[key]; err != nil {
		return nil, err
	}
	return f.tickets[key], nil
}

func (f *fakeRailway) StopSequence(ctx context.Context, train *models.ParsedTrain) (models.StopSequence, error) {
	f.stopCalls[train.TrainNo]++
	if err := f.stopErr[train.TrainNo]; err != nil {
		return nil, err
	}
	seq, ok := f.stops[train.TrainNo]
	if !ok {
		return models.StopSequence{}, nil
	}
	return seq, nil
}

func (f *fakeRailway) queryCount(from, to string) int {
	n := 0
	for _, q := range f.queries {
		if q.FromCode == from && q.ToCode == to {
			n++
		}
	}
	return n
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

func newTestEngine(rail Railway) (*Engine, *countingPacer) {
	pacer := &countingPacer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(rail, WithPacer(pacer), WithLogger(logger)), pacer
}

func record(trainNo, code, from, to, depart, arrive string, seats map[string]string) testutil.TrainRecord {
	return testutil.TrainRecord{
		TrainNo:    trainNo,
		Code:       code,
		From:       from,
		To:         to,
		DepartTime: depart,
		ArriveTime: arrive,
		Duration:   "02:00",
		StartDate:  "20261020",
		Seats:      seats,
	}
}

func TestSearch_DirectFindingOnIntermediateStop(t *testing.T) {
	rail := newFakeRailway()
	rail.tickets["AAA|CCC"] = []string{
		record("t1", "G1", "AAA", "BBB", "08:00", "10:00", map[string]string{"二等座": "*", "硬座": "5"}).String(),
	}
	engine, pacer := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{Date: models.Dates{testDate}, From: "A", To: "C"}, testDate, collector)
	testutil.AssertNil(t, err)

	routes := collector.Routes()
	testutil.AssertLen(t, routes, 1)
	testutil.AssertEqual(t, routes[0], RouteKey{Date: testDate, From: "A", To: "B"})

	findings := collector.Findings(routes[0])
	testutil.AssertLen(t, findings, 1)
	testutil.AssertEqual(t, findings[0].Summary, "硬座 5")
	testutil.AssertEqual(t, findings[0].Total, "5")
	testutil.AssertEqual(t, findings[0].Pass, PassDirect)
	testutil.AssertContains(t, findings[0].Line(), "G1 A→B(08:00->10:00) 硬座 5")
	testutil.AssertContains(t, findings[0].Link, "linktypeid=dc")

	testutil.AssertTrue(t, pacer.waits > 0)
}

func TestSearch_MalformedRecordDoesNotAbort(t *testing.T) {
	rail := newFakeRailway()
	good := record("t1", "G1", "AAA", "CCC", "08:00", "10:00", map[string]string{"硬座": "3"})
	rail.tickets["AAA|CCC"] = []string{
		"garbage|record",
		record("t2", "G2", "AAA", "CCC", "09:00", "11:00", map[string]string{"硬座": "4"}).Truncated(10),
		good.String(),
	}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{From: "A", To: "C"}, testDate, collector)
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, collector.Total(), 2)

	// Stop sequences are requested for both parsed trains only
	testutil.AssertEqual(t, len(rail.stopCalls), 2)
}

func TestSearch_DirectQueryFailurePropagates(t *testing.T) {
	rail := newFakeRailway()
	rail.ticketErr["AAA|CCC"] = &api.NetworkError{Endpoint: api.EndpointTicketQuery, Message: "upstream rejected query", Attempts: 1}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{From: "A", To: "C"}, testDate, collector)
	testutil.AssertErrorIs(t, err, api.ErrNetwork)
	testutil.AssertEqual(t, collector.Len(), 0)
}

func TestSearch_UnknownStation(t *testing.T) {
	engine, _ := newTestEngine(newFakeRailway())

	err := engine.Search(context.Background(), models.SearchConfig{From: "A", To: "Nowhere"}, testDate, NewCollector())
	testutil.AssertErrorIs(t, err, api.ErrStationNotFound)
}

func TestSearch_DestinationExtensionBatches(t *testing.T) {
	rail := newFakeRailway()
	seq := stopsOf("AAA", "BBB", "CCC", "DDD", "EEE")
	rail.stops["t1"] = seq
	rail.stops["t2"] = seq
	rail.tickets["AAA|BBB"] = []string{
		record("t1", "G1", "AAA", "BBB", "08:00", "09:00", nil).String(),
		record("t2", "G2", "AAA", "BBB", "08:00", "09:00", map[string]string{"硬座": "无"}).String(),
	}
	rail.tickets["AAA|CCC"] = []string{
		record("t1", "G1", "AAA", "CCC", "08:00", "10:00", map[string]string{"一等座": "有"}).String(),
		// same pair, different run
		record("t9", "G9", "AAA", "CCC", "07:00", "10:45", map[string]string{"一等座": "有"}).String(),
	}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{From: "A", To: "B"}, testDate, collector)
	testutil.AssertNil(t, err)

	testutil.AssertEqual(t, rail.queryCount("AAA", "CCC"), 1)
	testutil.AssertEqual(t, rail.stopCalls["t1"], 1)
	testutil.AssertEqual(t, rail.stopCalls["t2"], 1)

	key := RouteKey{Date: testDate, From: "A", To: "C"}
	findings := collector.Findings(key)
	testutil.AssertLen(t, findings, 1)
	testutil.AssertEqual(t, findings[0].Train, "G1")
	testutil.AssertEqual(t, findings[0].Pass, PassDestination)
	testutil.AssertEqual(t, findings[0].Total, "≥20")
	testutil.AssertEqual(t, collector.Len(), 1)
}

func TestSearch_OriginAndBothExtensions(t *testing.T) {
	rail := newFakeRailway()
	rail.stops["t5"] = stopsOf("AAA", "BBB", "CCC", "DDD", "EEE")
	rail.tickets["BBB|DDD"] = []string{
		record("t5", "G5", "BBB", "DDD", "09:00", "11:00", nil).String(),
	}
	rail.tickets["BBB|EEE"] = []string{
		record("t5", "G5", "BBB", "EEE", "09:00", "12:00", map[string]string{"二等座": "2"}).String(),
	}
	rail.tickets["AAA|DDD"] = []string{
		record("t5", "G5", "AAA", "DDD", "08:00", "11:00", map[string]string{"二等座": "1"}).String(),
	}
	rail.tickets["AAA|EEE"] = []string{
		record("t5", "G5", "AAA", "EEE", "08:00", "12:00", map[string]string{"商务座": "7"}).String(),
	}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{From: "B", To: "D"}, testDate, collector)
	testutil.AssertNil(t, err)

	routes := collector.Routes()
	testutil.AssertLen(t, routes, 3)
	testutil.AssertEqual(t, routes[0], RouteKey{Date: testDate, From: "B", To: "E"})
	testutil.AssertEqual(t, routes[1], RouteKey{Date: testDate, From: "A", To: "D"})
	testutil.AssertEqual(t, routes[2], RouteKey{Date: testDate, From: "A", To: "E"})

	testutil.AssertEqual(t, collector.Findings(routes[0])[0].Pass, PassDestination)
	testutil.AssertEqual(t, collector.Findings(routes[1])[0].Pass, PassOrigin)
	testutil.AssertEqual(t, collector.Findings(routes[2])[0].Pass, PassBoth)
	testutil.AssertEqual(t, collector.Findings(routes[2])[0].Summary, "商务座 7")

	// One stop sequence lookup serves both extension passes
	testutil.AssertEqual(t, rail.stopCalls["t5"], 1)
}

func TestSearch_StopSequenceFailureSkipsTrain(t *testing.T) {
	rail := newFakeRailway()
	seq := stopsOf("AAA", "BBB", "CCC", "DDD", "EEE")
	rail.stops["t2"] = seq
	rail.stopErr["t1"] = &api.StopSequenceError{TrainNo: "t1", Err: errors.New("boom")}
	rail.tickets["AAA|BBB"] = []string{
		record("t1", "G1", "AAA", "BBB", "08:00", "09:00", nil).String(),
		record("t2", "G2", "AAA", "BBB", "08:30", "09:00", nil).String(),
	}
	rail.tickets["AAA|CCC"] = []string{
		record("t2", "G2", "AAA", "CCC", "08:30", "10:00", map[string]string{"硬卧": "1"}).String(),
	}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{From: "A", To: "B"}, testDate, collector)
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, collector.Total(), 1)

	// The failed train is retried by the origin pass
	testutil.AssertEqual(t, rail.stopCalls["t1"], 2)
}

func TestSearch_BatchedQueryFailureContinues(t *testing.T) {
	rail := newFakeRailway()
	rail.stops["t1"] = stopsOf("AAA", "BBB", "CCC", "DDD", "EEE")
	rail.tickets["BBB|DDD"] = []string{
		record("t1", "G1", "BBB", "DDD", "09:00", "11:00", nil).String(),
	}
	rail.ticketErr["BBB|EEE"] = &api.NetworkError{Endpoint: api.EndpointTicketQuery, Message: "down"}
	rail.tickets["AAA|DDD"] = []string{
		record("t1", "G1", "AAA", "DDD", "08:00", "11:00", map[string]string{"无座": "12"}).String(),
	}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	err := engine.Search(context.Background(), models.SearchConfig{From: "B", To: "D"}, testDate, collector)
	testutil.AssertNil(t, err)
	testutil.AssertLen(t, collector.Findings(RouteKey{Date: testDate, From: "A", To: "D"}), 1)
}

func TestSearch_Filters(t *testing.T) {
	begin, end := 9, 12

	tests := []struct {
		name string
		cfg  models.SearchConfig
		want []string
	}{
		{
			name: "no filters",
			cfg:  models.SearchConfig{From: "A", To: "D"},
			want: []string{"G1", "G3", "G2"},
		},
		{
			name: "alighting station by name",
			cfg:  models.SearchConfig{From: "A", To: "D", TrainsFilter: &models.TrainsFilter{To: []string{"C"}}},
			want: []string{"G2"},
		},
		{
			name: "alighting station by telecode",
			cfg:  models.SearchConfig{From: "A", To: "D", TrainsFilter: &models.TrainsFilter{ToTeleCode: []string{"DDD"}}},
			want: []string{"G1", "G3"},
		},
		{
			name: "name and telecode union",
			cfg:  models.SearchConfig{From: "A", To: "D", TrainsFilter: &models.TrainsFilter{To: []string{"C"}, ToTeleCode: []string{"DDD"}}},
			want: []string{"G1", "G3", "G2"},
		},
		{
			name: "departure hour",
			cfg:  models.SearchConfig{From: "A", To: "D", TrainsFilter: &models.TrainsFilter{BeginHour: &begin}},
			want: []string{"G2", "G3"},
		},
		{
			name: "arrival hour",
			cfg:  models.SearchConfig{From: "A", To: "D", TrainsFilter: &models.TrainsFilter{EndHour: &end}},
			want: []string{"G1", "G2"},
		},
		{
			name: "train allow-list",
			cfg:  models.SearchConfig{From: "A", To: "D", Trains: []models.TrainRule{{Code: "G3"}, {Code: "G1", To: "C"}}},
			want: []string{"G3"},
		},
		{
			name: "exclude by code and destination",
			cfg:  models.SearchConfig{From: "A", To: "D", Exclude: &models.Exclude{Trains: []string{"G1"}, To: []string{"C"}}},
			want: []string{"G3"},
		},
		{
			name: "seat allow-list",
			cfg:  models.SearchConfig{From: "A", To: "D", SeatCategory: []models.SeatCategory{models.SeatHardSeat}},
			want: []string{"G2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rail := newFakeRailway()
			rail.tickets["AAA|DDD"] = []string{
				record("t1", "G1", "AAA", "DDD", "08:00", "10:00", map[string]string{"二等座": "9"}).String(),
				record("t2", "G2", "AAA", "CCC", "09:00", "11:00", map[string]string{"硬座": "1"}).String(),
				withDuration(record("t3", "G3", "AAA", "DDD", "10:30", "13:30", map[string]string{"二等座": "有"}), "03:00").String(),
			}
			engine, _ := newTestEngine(rail)
			collector := NewCollector()

			err := engine.Search(context.Background(), tt.cfg, testDate, collector)
			testutil.AssertNil(t, err)

			// Snapshot groups by route in first-seen order
			var got []string
			for _, rf := range collector.Snapshot() {
				for _, f := range rf.Findings {
					got = append(got, f.Train)
				}
			}
			testutil.AssertLen(t, got, len(tt.want))
			for i := range tt.want {
				testutil.AssertEqual(t, got[i], tt.want[i])
			}
		})
	}
}

func withDuration(r testutil.TrainRecord, d string) testutil.TrainRecord {
	r.Duration = d
	return r
}

func TestSearch_ExtensionIgnoresStationFilter(t *testing.T) {
	rail := newFakeRailway()
	rail.stops["t1"] = stopsOf("AAA", "BBB", "CCC", "DDD", "EEE")
	rail.tickets["AAA|BBB"] = []string{
		record("t1", "G1", "AAA", "BBB", "08:00", "09:00", map[string]string{"硬座": "2"}).String(),
	}
	rail.tickets["AAA|CCC"] = []string{
		record("t1", "G1", "AAA", "CCC", "08:00", "10:00", map[string]string{"硬座": "2"}).String(),
	}
	engine, _ := newTestEngine(rail)
	collector := NewCollector()

	cfg := models.SearchConfig{From: "A", To: "B", TrainsFilter: &models.TrainsFilter{ToTeleCode: []string{"ZZZ"}}}
	err := engine.Search(context.Background(), cfg, testDate, collector)
	testutil.AssertNil(t, err)

	routes := collector.Routes()
	testutil.AssertLen(t, routes, 1)
	testutil.AssertEqual(t, routes[0].To, "C")
}

func TestSearch_CancelledContext(t *testing.T) {
	rail := newFakeRailway()
	engine, _ := newTestEngine(rail)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Search(ctx, models.SearchConfig{From: "A", To: "C"}, testDate, NewCollector())
	testutil.AssertErrorIs(t, err, context.Canceled)
	testutil.AssertLen(t, rail.queries, 0)
}
