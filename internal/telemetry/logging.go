package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps debug, info, warn/warning and error to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogging installs a text handler on stdout as the default logger.
// An empty level falls back to LOG_LEVEL, then info.
func InitLogging(level string) *slog.Logger {
	return InitLoggingTo(os.Stdout, level)
}

// InitLoggingTo is InitLogging with an explicit writer
func InitLoggingTo(w io.Writer, level string) *slog.Logger {
	if level == "" {
		level = getEnv("LOG_LEVEL", "info")
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
