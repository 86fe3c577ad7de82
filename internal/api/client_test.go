package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/railwatch/crtm/internal/cache"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/testutil"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient()
	testutil.AssertNil(t, err)
	defer client.Close()

	testutil.AssertTrue(t, client.httpClient != nil)
	testutil.AssertEqual(t, client.baseURL, BaseURL)
	testutil.AssertTrue(t, client.timezone != nil)
	testutil.AssertEqual(t, client.retry, DefaultRetryPolicy())

	stats := client.CacheStats()
	testutil.AssertEqual(t, stats["tickets"].MaxSize, defaultTicketCacheSize)
	testutil.AssertEqual(t, stats["tickets"].TTL, defaultTicketTTL)
	testutil.AssertEqual(t, stats["stops"].TTL, defaultStopTTL)
}

func TestNewClient_Options(t *testing.T) {
	customClient := &http.Client{Timeout: 5 * time.Second}
	client, err := NewClient(
		WithHTTPClient(customClient),
		WithTimeout(30*time.Second),
		WithBaseURL("http://localhost:9999/"),
		WithCache(&mockCache{data: make(map[string][]byte)}),
	)
	testutil.AssertNil(t, err)
	defer client.Close()

	testutil.AssertEqual(t, client.httpClient, customClient)
	testutil.AssertEqual(t, client.httpClient.Timeout, 30*time.Second)
	testutil.AssertEqual(t, client.baseURL, "http://localhost:9999")
	testutil.AssertTrue(t, client.stationCache != nil)
}

func TestChinaTimezone(t *testing.T) {
	tz := ChinaTimezone()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).In(tz)
	_, offset := ts.Zone()
	testutil.AssertEqual(t, offset, 8*60*60)
}

func TestNewBrowserProfile(t *testing.T) {
	profile := newBrowserProfile()
	testutil.AssertContains(t, profile.userAgent, "Mozilla")
	testutil.AssertNotContains(t, profile.userAgent, "XXXX")
	testutil.AssertContains(t, profile.secChUA, "Chromium")
	testutil.AssertTrue(t, profile.platform != "")
}

func TestStationLookups(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{})
	client := newTestClient(t, ms.URL)

	code, err := client.StationCode(context.Background(), "广州南")
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, code, "IZQ")

	name, err := client.StationName(context.Background(), "CWQ")
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, name, "长沙南")

	_, err = client.StationCode(context.Background(), "不存在")
	testutil.AssertErrorIs(t, err, ErrStationNotFound)

	// Loaded once for the process lifetime
	testutil.AssertEqual(t, ms.CountPath(EndpointStationTable), 1)
}

func TestStationTable_UsesBodyCache(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{})
	mc := &mockCache{data: map[string][]byte{
		EndpointStationTable: []byte(testutil.SampleStationTable),
	}}
	client := newTestClient(t, ms.URL, WithCache(mc))

	code, err := client.StationCode(context.Background(), "A")
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, code, "AAA")
	testutil.AssertEqual(t, ms.CountPath(EndpointStationTable), 0)
}

func TestStationTable_FetchedBodyIsCached(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{})
	mc := &mockCache{data: make(map[string][]byte)}
	client := newTestClient(t, ms.URL, WithCache(mc))

	_, err := client.StationName(context.Background(), "AAA")
	testutil.AssertNil(t, err)
	_, ok := mc.data[EndpointStationTable]
	testutil.AssertTrue(t, ok)
}

func TestStationTable_EmptyIsError(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{stations: "var station_names ='';"})
	client := newTestClient(t, ms.URL)

	_, err := client.StationCode(context.Background(), "A")
	testutil.AssertError(t, err)
	testutil.AssertErrorIs(t, err, ErrNetwork)
}

func TestQueryTickets_Success(t *testing.T) {
	rec := testutil.TrainRecord{TrainNo: "5l000G101000", Code: "G101", From: "AAA", To: "BBB", StartDate: "20261020"}
	ms := newUpstream(t, upstreamRoutes{tickets: testutil.TicketResponse(rec.String())})
	client := newTestClient(t, ms.URL)

	records, err := client.QueryTickets(context.Background(), models.Query{Date: "2026-10-20", FromCode: "AAA", ToCode: "CCC"})
	testutil.AssertNil(t, err)
	testutil.AssertLen(t, records, 1)
	testutil.AssertContains(t, records[0], "G101")

	req := ms.LastRequest()
	testutil.AssertEqual(t, req.URL.RawQuery,
		"leftTicketDTO.train_date=2026-10-20&leftTicketDTO.from_station=AAA&leftTicketDTO.to_station=CCC&purpose_codes=ADULT")
	testutil.AssertContains(t, req.Header.Get("Cookie"), "JSESSIONID=")
	testutil.AssertTrue(t, req.Header.Get("X-Request-ID") != "")
	testutil.AssertContains(t, req.Header.Get("User-Agent"), "Mozilla")
}

func TestQueryTickets_CachedWithinTTL(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{tickets: testutil.TicketResponse()})
	client := newTestClient(t, ms.URL)
	q := models.Query{Date: "2026-10-20", FromCode: "AAA", ToCode: "CCC"}

	first, err := client.QueryTickets(context.Background(), q)
	testutil.AssertNil(t, err)
	second, err := client.QueryTickets(context.Background(), q)
	testutil.AssertNil(t, err)

	testutil.AssertLen(t, first, 0)
	testutil.AssertLen(t, second, 0)
	testutil.AssertEqual(t, ms.CountPath(EndpointTicketQuery), 1)

	// A different pair is a different cache key
	_, err = client.QueryTickets(context.Background(), models.Query{Date: "2026-10-20", FromCode: "AAA", ToCode: "BBB"})
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, ms.CountPath(EndpointTicketQuery), 2)
}

func TestQueryTickets_StatusFalse(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{tickets: testutil.SampleStatusFalseResponse})
	client := newTestClient(t, ms.URL)

	_, err := client.QueryTickets(context.Background(), models.Query{Date: "2026-10-20", FromCode: "AAA", ToCode: "CCC"})
	testutil.AssertError(t, err)
	testutil.AssertErrorIs(t, err, ErrNetwork)
	// Rejected queries are not retried
	testutil.AssertEqual(t, ms.CountPath(EndpointTicketQuery), 1)
}

func TestQueryTickets_InvalidJSON(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{tickets: "<html>busy</html>"})
	client := newTestClient(t, ms.URL)

	_, err := client.QueryTickets(context.Background(), models.Query{Date: "2026-10-20", FromCode: "AAA", ToCode: "CCC"})
	testutil.AssertErrorIs(t, err, ErrNetwork)
}

func TestQueryTickets_Validation(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")

	tests := []struct {
		name  string
		query models.Query
		field string
	}{
		{"missing date", models.Query{FromCode: "A", ToCode: "B"}, "date"},
		{"bad date", models.Query{Date: "20261020", FromCode: "A", ToCode: "B"}, "date"},
		{"missing from", models.Query{Date: "2026-10-20", ToCode: "B"}, "from"},
		{"missing to", models.Query{Date: "2026-10-20", FromCode: "A"}, "to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.QueryTickets(context.Background(), tt.query)
			var ve *ValidationError
			testutil.AssertTrue(t, errors.As(err, &ve))
			testutil.AssertEqual(t, ve.Field, tt.field)
			testutil.AssertErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestStopSequence_ResolvesCodesAndCaches(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{stops: testutil.StopSequenceResponse(
		testutil.StopFixture{Name: "A", Depart: "08:00"},
		testutil.StopFixture{Name: "B", Arrive: "09:00", Depart: "09:02"},
		testutil.StopFixture{Name: "无名站", Arrive: "09:30", Depart: "09:31"},
		testutil.StopFixture{Name: "C", Arrive: "10:00"},
	)})
	client := newTestClient(t, ms.URL)
	train := &models.ParsedTrain{TrainNo: "5l000G101000", FromStationCode: "AAA", ToStationCode: "CCC", StartDate: "20261020"}

	seq, err := client.StopSequence(context.Background(), train)
	testutil.AssertNil(t, err)
	testutil.AssertLen(t, seq, 4)
	testutil.AssertEqual(t, seq[0].StationCode, "AAA")
	testutil.AssertEqual(t, seq[1].StationCode, "BBB")
	testutil.AssertEqual(t, seq[1].ArriveTime, "09:00")
	testutil.AssertEqual(t, seq[2].StationCode, "")
	testutil.AssertEqual(t, seq[3].StopIndex, 4)

	req := ms.LastRequest()
	testutil.AssertEqual(t, req.URL.Query().Get("depart_date"), "2026-10-20")
	testutil.AssertEqual(t, req.URL.Query().Get("train_no"), "5l000G101000")

	_, err = client.StopSequence(context.Background(), train)
	testutil.AssertNil(t, err)
	testutil.AssertEqual(t, ms.CountPath(EndpointStopSequence), 1)
}

func TestStopSequence_EmptyNotCached(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{stops: testutil.StopSequenceResponse()})
	client := newTestClient(t, ms.URL)
	train := &models.ParsedTrain{TrainNo: "X1", FromStationCode: "AAA", ToStationCode: "CCC"}

	seq, err := client.StopSequence(context.Background(), train)
	testutil.AssertNil(t, err)
	testutil.AssertLen(t, seq, 0)
	_, _ = client.StopSequence(context.Background(), train)
	testutil.AssertEqual(t, ms.CountPath(EndpointStopSequence), 2)
}

func TestStopSequence_Errors(t *testing.T) {
	ms := newUpstream(t, upstreamRoutes{stops: "not json"})
	client := newTestClient(t, ms.URL)

	_, err := client.StopSequence(context.Background(), &models.ParsedTrain{TrainNo: "X1", FromStationCode: "AAA", ToStationCode: "CCC"})
	testutil.AssertErrorIs(t, err, ErrStopSequence)

	var se *StopSequenceError
	testutil.AssertTrue(t, errors.As(err, &se))
	testutil.AssertEqual(t, se.TrainNo, "X1")

	_, err = client.StopSequence(context.Background(), &models.ParsedTrain{TrainNo: "X2"})
	testutil.AssertErrorIs(t, err, ErrStopSequence)
	testutil.AssertErrorIs(t, err, ErrInvalidRequest)
}

func TestClient_ContextCancellation(t *testing.T) {
	ms := testutil.NewMockServer(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	defer ms.Close()
	client := newTestClient(t, ms.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.QueryTickets(ctx, models.Query{Date: "2026-10-20", FromCode: "AAA", ToCode: "CCC"})
	testutil.AssertErrorIs(t, err, ErrTimeout)
	testutil.AssertFalse(t, errors.Is(err, ErrNetwork))
}

func TestBookingURL(t *testing.T) {
	link := BookingURL("广州南", "IZQ", "长沙南", "CWQ", "2026-10-20")
	testutil.AssertContains(t, link, BaseURL+EndpointBookingPage+"?")
	testutil.AssertContains(t, link, "linktypeid=dc")
	testutil.AssertContains(t, link, "date=2026-10-20")
	testutil.AssertContains(t, link, "IZQ")
}

// upstreamRoutes overrides fixture bodies; empty fields use defaults
type upstreamRoutes struct {
	stations string
	tickets  string
	stops    string
}

func newUpstream(t *testing.T, r upstreamRoutes) *testutil.MockServer {
	t.Helper()
	if r.stations == "" {
		r.stations = testutil.SampleStationTable
	}
	if r.tickets == "" {
		r.tickets = testutil.TicketResponse()
	}
	if r.stops == "" {
		r.stops = testutil.StopSequenceResponse()
	}
	ms := testutil.NewRouteServer(map[string]string{
		EndpointStationTable: r.stations,
		EndpointTicketQuery:  r.tickets,
		EndpointStopSequence: r.stops,
	})
	t.Cleanup(ms.Close)
	return ms
}

// mockCache implements Cache for testing
type mockCache struct {
	data map[string][]byte
	sets atomic.Int32
}

func (m *mockCache) Get(key string) ([]byte, bool) {
	data, ok := m.data[key]
	return data, ok
}

func (m *mockCache) Set(key string, value []byte) error {
	m.sets.Add(1)
	m.data[key] = value
	return nil
}

// newTestClient creates a client pointing at a test server with a fast retry policy
func newTestClient(t *testing.T, baseURL string, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{
		WithBaseURL(baseURL),
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 2}),
		WithTicketCache(cache.NewMemoryCache[[]string](time.Minute, cache.WithSweepInterval(0))),
		WithStopCache(cache.NewMemoryCache[models.StopSequence](time.Hour, cache.WithSweepInterval(0))),
	}, opts...)
	client, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(client.Close)
	return client
}
