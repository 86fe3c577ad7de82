package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// instruments holds every metric the service records. They are created from
// the global meter, which forwards to the real provider once InitMetrics runs.
type instruments struct {
	upstreamRequests metric.Int64Counter
	upstreamRetries  metric.Int64Counter
	cacheLookups     metric.Int64Counter
	searchDuration   metric.Float64Histogram
	findings         metric.Int64Counter
	cycles           metric.Int64Counter
	cycleDuration    metric.Float64Histogram
	notifications    metric.Int64Counter
}

var (
	instOnce sync.Once
	inst     instruments

	lastCycleTimestamp atomic.Int64
)

func meter() metric.Meter {
	return otel.Meter(instrumentationPrefix + "crtm")
}

func getInstruments() *instruments {
	instOnce.Do(func() {
		m := meter()
		var errs []error
		collect := func(err error) {
			if err != nil {
				errs = append(errs, err)
			}
		}

		var err error
		inst.upstreamRequests, err = m.Int64Counter("crtm.upstream.requests",
			metric.WithDescription("Upstream requests by endpoint and outcome"),
			metric.WithUnit("{request}"))
		collect(err)
		inst.upstreamRetries, err = m.Int64Counter("crtm.upstream.retries",
			metric.WithDescription("Upstream retry attempts"),
			metric.WithUnit("{retry}"))
		collect(err)
		inst.cacheLookups, err = m.Int64Counter("crtm.cache.lookups",
			metric.WithDescription("Cache lookups by cache and result"),
			metric.WithUnit("{lookup}"))
		collect(err)
		inst.searchDuration, err = m.Float64Histogram("crtm.search.duration",
			metric.WithDescription("Duration of one four-pass search"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300))
		collect(err)
		inst.findings, err = m.Int64Counter("crtm.search.findings",
			metric.WithDescription("Trains with remaining tickets by discovery pass"),
			metric.WithUnit("{train}"))
		collect(err)
		inst.cycles, err = m.Int64Counter("crtm.monitor.cycles",
			metric.WithDescription("Monitor cycles by outcome"),
			metric.WithUnit("{cycle}"))
		collect(err)
		inst.cycleDuration, err = m.Float64Histogram("crtm.monitor.cycle.duration",
			metric.WithDescription("Duration of one monitor cycle"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600))
		collect(err)
		inst.notifications, err = m.Int64Counter("crtm.notifications.sent",
			metric.WithDescription("Notification deliveries by transport and outcome"),
			metric.WithUnit("{notification}"))
		collect(err)

		for _, err := range errs {
			slog.Warn("Failed to create metric instrument", "error", err)
		}
	})
	return &inst
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", "error")
	}
	return attribute.String("outcome", "ok")
}

// RecordUpstream counts one logical upstream request (retries included)
func RecordUpstream(ctx context.Context, endpoint string, err error) {
	if c := getInstruments().upstreamRequests; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint), outcome(err)))
	}
}

// RecordRetry counts one retry attempt
func RecordRetry(ctx context.Context, endpoint string) {
	if c := getInstruments().upstreamRetries; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
	}
}

// RecordCacheLookup counts a cache hit or miss
func RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	if c := getInstruments().cacheLookups; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cache), attribute.String("result", result)))
	}
}

// RecordSearch records the duration of one search
func RecordSearch(ctx context.Context, d time.Duration, err error) {
	if h := getInstruments().searchDuration; h != nil {
		h.Record(ctx, d.Seconds(), metric.WithAttributes(outcome(err)))
	}
}

// RecordFinding counts one reported train
func RecordFinding(ctx context.Context, pass string) {
	if c := getInstruments().findings; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("pass", pass)))
	}
}

// RecordCycle records one monitor cycle
func RecordCycle(ctx context.Context, d time.Duration, failed bool) {
	res := "ok"
	if failed {
		res = "partial"
	} else {
		lastCycleTimestamp.Store(time.Now().Unix())
	}
	i := getInstruments()
	if i.cycles != nil {
		i.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", res)))
	}
	if i.cycleDuration != nil {
		i.cycleDuration.Record(ctx, d.Seconds())
	}
}

// RecordNotification counts one delivery attempt
func RecordNotification(ctx context.Context, transport string, err error) {
	if c := getInstruments().notifications; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport), outcome(err)))
	}
}

// InitMetrics exports metrics over OTLP/HTTP when OTEL_METRICS_ENABLED is set.
// The returned function flushes and shuts the provider down.
func InitMetrics() (func(), error) {
	if !IsMetricsEnabled() {
		slog.Debug("OpenTelemetry metrics is disabled")
		return func() {}, nil
	}

	ctx := context.Background()
	cfg := GetExporterConfig(SignalMetrics)

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Host),
		otlpmetrichttp.WithURLPath(cfg.Path),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		slog.Warn("Failed to create OTLP metric exporter, using noop", "error", err)
		return func() {}, nil
	}

	res, err := newResource()
	if err != nil {
		slog.Warn("Failed to create resource, using noop", "error", err)
		return func() {}, nil
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(60*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	if err := registerRuntimeMetrics(); err != nil {
		slog.Warn("Failed to register runtime metrics", "error", err)
	}

	slog.Debug("OpenTelemetry metrics initialized", "host", cfg.Host, "path", cfg.Path)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down meter provider", "error", err)
		}
	}, nil
}

func registerRuntimeMetrics() error {
	m := meter()

	_, err := m.Int64ObservableGauge(
		"runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = m.Int64ObservableGauge(
		"crtm.monitor.last_success.timestamp",
		metric.WithDescription("Unix timestamp of the last cycle without errors"),
		metric.WithUnit("s"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if ts := lastCycleTimestamp.Load(); ts > 0 {
				o.Observe(ts)
			}
			return nil
		}),
	)
	return err
}
