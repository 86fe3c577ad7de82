package api

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/railwatch/crtm/internal/cache"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/telemetry"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultTicketTTL       = 5 * time.Minute
	defaultStopTTL         = 24 * time.Hour
	defaultTicketCacheSize = 1000
	defaultStationTableTTL = 24 * time.Hour
)

// browserProfile holds a consistent browser identity for a client session.
type browserProfile struct {
	userAgent string
	secChUA   string
	platform  string
}

var userAgentTemplates = []struct {
	ua       string
	major    int
	platform string
}{
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.XXXX.YYY Safari/537.36", 131, `"Windows"`},
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.XXXX.YYY Safari/537.36", 126, `"Windows"`},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.XXXX.YYY Safari/537.36", 129, `"macOS"`},
	{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.XXXX.YYY Safari/537.36", 134, `"Linux"`},
}

// cryptoRandIntn returns a random integer [0, n) using crypto/rand
func cryptoRandIntn(n int) int {
	nBig, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return int(time.Now().UnixNano() % int64(n))
	}
	return int(nBig.Int64())
}

// newBrowserProfile generates a randomized but internally-consistent browser identity.
func newBrowserProfile() browserProfile {
	tmpl := userAgentTemplates[cryptoRandIntn(len(userAgentTemplates))]

	ua := strings.NewReplacer(
		"XXXX", fmt.Sprintf("%d", cryptoRandIntn(1000)),
		"YYY", fmt.Sprintf("%d", cryptoRandIntn(100)),
	).Replace(tmpl.ua)

	return browserProfile{
		userAgent: ua,
		secChUA:   fmt.Sprintf(`"Chromium";v="%d", "Not?A_Brand";v="24", "Google Chrome";v="%d"`, tmpl.major, tmpl.major),
		platform:  tmpl.platform,
	}
}

// Cache stores raw response bodies (the station table)
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

// Client talks to the 12306 web API. Every request goes through the retrying
// fetcher; ticket queries and stop sequences are cached in memory.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   *time.Location
	browser    browserProfile
	logger     *slog.Logger
	tracer     trace.Tracer
	retry      RetryPolicy

	stationCache Cache
	tickets      *cache.MemoryCache[[]string]
	stops        *cache.MemoryCache[models.StopSequence]
	stations     *StationDirectory
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another host
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithCache persists the station table body in the given cache
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.stationCache = cache
	}
}

// WithDefaultCache persists the station table in the default file cache
func WithDefaultCache(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl <= 0 {
			ttl = defaultStationTableTTL
		}
		fc, err := cache.NewFileCache(cache.DefaultCacheDir(), ttl)
		if err == nil {
			c.stationCache = fc
		}
	}
}

// WithTicketCache replaces the ticket query cache
func WithTicketCache(tc *cache.MemoryCache[[]string]) ClientOption {
	return func(c *Client) {
		c.tickets = tc
	}
}

// WithStopCache replaces the stop sequence cache
func WithStopCache(sc *cache.MemoryCache[models.StopSequence]) ClientOption {
	return func(c *Client) {
		c.stops = sc
	}
}

// WithRetryPolicy sets the retry schedule
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new API client
func NewClient(opts ...ClientOption) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:  BaseURL,
		timezone: ChinaTimezone(),
		browser:  newBrowserProfile(),
		logger:   slog.Default(),
		tracer:   telemetry.Tracer("api"),
		retry:    DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tickets == nil {
		c.tickets = cache.NewMemoryCache[[]string](defaultTicketTTL, cache.WithMaxSize(defaultTicketCacheSize))
	}
	if c.stops == nil {
		c.stops = cache.NewMemoryCache[models.StopSequence](defaultStopTTL)
	}
	c.stations = NewStationDirectory(c.loadStations)

	return c, nil
}

// ChinaTimezone returns Asia/Shanghai, or a fixed +08:00 zone when tzdata is missing
func ChinaTimezone() *time.Location {
	tz, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return tz
}

// Timezone returns the client's timezone
func (c *Client) Timezone() *time.Location {
	return c.timezone
}

// Stations returns the station directory
func (c *Client) Stations() *StationDirectory {
	return c.stations
}

// StationCode resolves a station display name to its code
func (c *Client) StationCode(ctx context.Context, name string) (string, error) {
	return c.stations.CodeOf(ctx, name)
}

// StationName resolves a station code to its display name
func (c *Client) StationName(ctx context.Context, code string) (string, error) {
	return c.stations.NameOf(ctx, code)
}

// CacheStats reports the in-memory caches
func (c *Client) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"tickets": c.tickets.Stats(),
		"stops":   c.stops.Stats(),
	}
}

// Close stops cache janitors and drops cached entries
func (c *Client) Close() {
	c.tickets.Close()
	c.stops.Close()
}

// loadStations fetches the station table, preferring the body cache
func (c *Client) loadStations(ctx context.Context) (*models.StationTable, error) {
	if c.stationCache != nil {
		if body, ok := c.stationCache.Get(EndpointStationTable); ok {
			if table := models.ParseStationTable(string(body)); table.Len() > 0 {
				return table, nil
			}
		}
	}

	body, err := c.fetch(ctx, c.baseURL+EndpointStationTable)
	if err != nil {
		return nil, err
	}
	table := models.ParseStationTable(string(body))
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: station table is empty", ErrNetwork)
	}
	if c.stationCache != nil {
		if err := c.stationCache.Set(EndpointStationTable, body); err != nil {
			c.logger.Warn("failed to cache station table", "error", err)
		}
	}
	c.logger.Debug("station table loaded", "stations", table.Len())
	return table, nil
}

// QueryTickets returns the raw train records for one date and station pair.
// Results are cached per (date, from, to). A response with status false is a
// NetworkError.
func (c *Client) QueryTickets(ctx context.Context, q models.Query) ([]string, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if records, ok := c.tickets.Get(q.Key()); ok {
		telemetry.RecordCacheLookup(ctx, "tickets", true)
		return records, nil
	}
	telemetry.RecordCacheLookup(ctx, "tickets", false)

	ctx, span := c.tracer.Start(ctx, "upstream.query_tickets", trace.WithAttributes(
		attribute.String("query.date", q.Date),
		attribute.String("query.from", q.FromCode),
		attribute.String("query.to", q.ToCode),
	))
	defer span.End()

	reqURL := c.baseURL + EndpointTicketQuery + "?" + ticketQueryParams(q.Date, q.FromCode, q.ToCode)
	body, err := c.fetch(ctx, reqURL, withHeader("Cookie", "JSESSIONID="))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket query failed")
		return nil, err
	}

	var resp models.TicketQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid ticket response")
		return nil, &NetworkError{
			Endpoint: EndpointTicketQuery,
			Message:  "failed to parse ticket response",
			Attempts: 1,
			Err:      err,
		}
	}
	if !resp.Status {
		span.SetStatus(codes.Error, "status false")
		return nil, &NetworkError{
			Endpoint:   EndpointTicketQuery,
			StatusCode: resp.HTTPStatus,
			Message:    "upstream rejected query " + q.String(),
		}
	}

	records := resp.Data.Result
	if records == nil {
		records = []string{}
	}
	span.SetAttributes(attribute.Int("query.records", len(records)))
	c.tickets.Set(q.Key(), records, 0)
	return records, nil
}

func validateQuery(q models.Query) error {
	if q.Date == "" {
		return ErrMissingField("date")
	}
	if _, err := time.Parse(DateLayout, q.Date); err != nil {
		return ErrInvalidFormat("date", "YYYY-MM-DD")
	}
	if q.FromCode == "" {
		return ErrMissingField("from")
	}
	if q.ToCode == "" {
		return ErrMissingField("to")
	}
	return nil
}

// StopSequence returns the ordered stops of a train, cached by train number.
// Station codes are resolved through the station directory; stops whose name
// is unknown keep an empty code. An empty upstream list is not cached.
func (c *Client) StopSequence(ctx context.Context, train *models.ParsedTrain) (models.StopSequence, error) {
	if train == nil || train.TrainNo == "" {
		return nil, &StopSequenceError{Err: ErrMissingField("train_no")}
	}
	if train.FromStationCode == "" || train.ToStationCode == "" {
		return nil, &StopSequenceError{TrainNo: train.TrainNo, Err: ErrMissingField("station code")}
	}

	if seq, ok := c.stops.Get(train.TrainNo); ok {
		telemetry.RecordCacheLookup(ctx, "stops", true)
		return seq, nil
	}
	telemetry.RecordCacheLookup(ctx, "stops", false)

	ctx, span := c.tracer.Start(ctx, "upstream.stop_sequence", trace.WithAttributes(
		attribute.String("train.no", train.TrainNo),
		attribute.String("train.code", train.Code),
	))
	defer span.End()

	params := url.Values{}
	params.Set("train_no", train.TrainNo)
	params.Set("from_station_telecode", train.FromStationCode)
	params.Set("to_station_telecode", train.ToStationCode)
	params.Set("depart_date", train.DepartDate())

	body, err := c.fetch(ctx, c.baseURL+EndpointStopSequence+"?"+params.Encode())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stop sequence failed")
		return nil, &StopSequenceError{TrainNo: train.TrainNo, Err: err}
	}

	var resp models.StopSequenceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid stop sequence response")
		return nil, &StopSequenceError{TrainNo: train.TrainNo, Err: fmt.Errorf("failed to parse stop sequence response: %w", err)}
	}

	raw := resp.Data.Data
	if len(raw) == 0 {
		return models.StopSequence{}, nil
	}

	table, err := c.stations.Table(ctx)
	if err != nil {
		return nil, &StopSequenceError{TrainNo: train.TrainNo, Err: err}
	}

	seq := make(models.StopSequence, 0, len(raw))
	for i := range raw {
		stop := raw[i].ToStop(i + 1)
		stop.StationCode, _ = table.CodeOf(stop.StationName)
		seq = append(seq, stop)
	}
	span.SetAttributes(attribute.Int("train.stops", len(seq)))
	c.stops.Set(train.TrainNo, seq, 0)
	return seq, nil
}

// requestOption adjusts a single outgoing request
type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// doRequest performs one HTTP GET attempt
func (c *Client) doRequest(ctx context.Context, reqURL string, opts ...requestOption) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	bp := c.browser

	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", BaseURL+EndpointBookingPage)
	req.Header.Set("User-Agent", bp.userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	req.Header.Set("sec-ch-ua", bp.secChUA)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", bp.platform)

	req.Header.Set("X-Request-ID", uuid.NewString())

	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewAPIError(resp.StatusCode, resp.Status, extractEndpoint(reqURL))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// extractEndpoint extracts the endpoint path from a full URL
func extractEndpoint(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil {
		return fullURL
	}
	return u.Path
}
