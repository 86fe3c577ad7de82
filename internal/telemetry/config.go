package telemetry

import (
	"context"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const serviceName = "crtm"

// Version is reported as the service version; set by main
var Version = "dev"

// Signal is an OTLP signal type
type Signal string

const (
	SignalTraces  Signal = "traces"
	SignalMetrics Signal = "metrics"
)

// ExporterConfig is the resolved OTLP/HTTP target for one signal
type ExporterConfig struct {
	Host     string
	Path     string
	Insecure bool
	Headers  map[string]string
}

// IsTracingEnabled reports OTEL_TRACING_ENABLED
func IsTracingEnabled() bool {
	return isTrue(getEnv("OTEL_TRACING_ENABLED", "false"))
}

// IsMetricsEnabled reports OTEL_METRICS_ENABLED
func IsMetricsEnabled() bool {
	return isTrue(getEnv("OTEL_METRICS_ENABLED", "false"))
}

// GetExporterConfig resolves OTEL_EXPORTER_OTLP_<SIGNAL>_ENDPOINT, then
// OTEL_EXPORTER_OTLP_ENDPOINT with the signal path appended, then localhost:4318.
func GetExporterConfig(signal Signal) ExporterConfig {
	upper := strings.ToUpper(string(signal))
	signalPath := "/v1/" + string(signal)

	raw := getEnv("OTEL_EXPORTER_OTLP_"+upper+"_ENDPOINT", "")
	appendPath := false
	if raw == "" {
		raw = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318")
		appendPath = true
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	cfg := ExporterConfig{
		Host:     "localhost:4318",
		Path:     signalPath,
		Insecure: strings.HasPrefix(raw, "http://"),
		Headers:  parseHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", "")),
	}
	u, err := url.Parse(raw)
	if err != nil {
		return cfg
	}
	cfg.Host = u.Host
	switch {
	case appendPath:
		cfg.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	case u.Path != "":
		cfg.Path = u.Path
	}
	return cfg
}

// newResource describes this service
func newResource() (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseHeaders parses "key1=value1,key2=value2"
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(headerStr, ",") {
		pair = strings.TrimSpace(pair)
		if idx := strings.Index(pair, "="); idx > 0 {
			headers[strings.TrimSpace(pair[:idx])] = pair[idx+1:]
		}
	}
	return headers
}
