package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/railwatch/crtm/internal/testutil"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			testutil.AssertEqual(t, ParseLevel(tt.in), tt.want)
		})
	}
}

func TestInitLoggingTo(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := InitLoggingTo(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "train", "G101")

	out := buf.String()
	testutil.AssertNotContains(t, out, "hidden")
	testutil.AssertContains(t, out, "shown")
	testutil.AssertContains(t, out, "train=G101")
}

func TestInitLoggingTo_EnvFallback(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	InitLoggingTo(&buf, "").Debug("visible")
	testutil.AssertContains(t, buf.String(), "visible")
}

func TestGetExporterConfig(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
		cfg := GetExporterConfig(SignalTraces)
		testutil.AssertEqual(t, cfg.Host, "localhost:4318")
		testutil.AssertEqual(t, cfg.Path, "/v1/traces")
		testutil.AssertTrue(t, cfg.Insecure)
	})

	t.Run("base endpoint gets signal path", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://otlp.example.com/otlp")
		t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
		cfg := GetExporterConfig(SignalMetrics)
		testutil.AssertEqual(t, cfg.Host, "otlp.example.com")
		testutil.AssertEqual(t, cfg.Path, "/otlp/v1/metrics")
		testutil.AssertFalse(t, cfg.Insecure)
	})

	t.Run("signal endpoint used as is", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://collector:4318/custom")
		cfg := GetExporterConfig(SignalTraces)
		testutil.AssertEqual(t, cfg.Host, "collector:4318")
		testutil.AssertEqual(t, cfg.Path, "/custom")
		testutil.AssertTrue(t, cfg.Insecure)
	})
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("Authorization=Basic abc=,X-Scope=crtm, broken")
	testutil.AssertEqual(t, h["Authorization"], "Basic abc=")
	testutil.AssertEqual(t, h["X-Scope"], "crtm")
	testutil.AssertEqual(t, len(h), 2)
}

func TestDisabledInitIsNoop(t *testing.T) {
	t.Setenv("OTEL_TRACING_ENABLED", "false")
	t.Setenv("OTEL_METRICS_ENABLED", "")
	t.Setenv("PYROSCOPE_PROFILING_ENABLED", "0")

	shutdown := Init()
	shutdown()
}

func TestRecordersWithoutProvider(t *testing.T) {
	ctx := context.Background()
	RecordUpstream(ctx, "/otn/leftTicket/queryG", nil)
	RecordUpstream(ctx, "/otn/leftTicket/queryG", errors.New("boom"))
	RecordRetry(ctx, "/otn/leftTicket/queryG")
	RecordCacheLookup(ctx, "tickets", true)
	RecordSearch(ctx, time.Second, nil)
	RecordFinding(ctx, "direct")
	RecordCycle(ctx, time.Second, false)
	RecordNotification(ctx, "console", nil)
	testutil.AssertTrue(t, lastCycleTimestamp.Load() > 0)
}
