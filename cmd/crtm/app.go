package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/railwatch/crtm/internal/api"
	"github.com/railwatch/crtm/internal/cache"
	"github.com/railwatch/crtm/internal/config"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/monitor"
	"github.com/railwatch/crtm/internal/notify"
	"github.com/railwatch/crtm/internal/output"
	"github.com/railwatch/crtm/internal/search"
	"github.com/railwatch/crtm/internal/store"
	"github.com/railwatch/crtm/internal/telemetry"
)

// app holds what every command shares
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *api.Client
	colors *output.Colors
}

// setup initializes logging, loads the config and creates the API client.
// Without requireConfig a missing config file falls back to defaults.
func setup(logOut io.Writer, requireConfig bool) (*app, error) {
	logger := telemetry.InitLoggingTo(logOut, flagLogLevel)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		if requireConfig || !config.IsNotExist(err) {
			if config.IsNotExist(err) {
				return nil, fmt.Errorf("%w\nRun 'crtm init' to write an example config", err)
			}
			return nil, err
		}
		cfg = config.Defaults()
	}

	client, err := createClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		colors: output.NewColors(getColorMode()),
	}, nil
}

func (a *app) close() {
	a.client.Close()
}

// createClient creates an API client with caches and retries from cfg
func createClient(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
	cacheOpts := []cache.MemoryOption{
		cache.WithMaxSize(cfg.Cache.MaxSize),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
	}

	opts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTicketCache(cache.NewMemoryCache[[]string](cfg.Cache.TicketTTL, cacheOpts...)),
		api.WithStopCache(cache.NewMemoryCache[models.StopSequence](cfg.Cache.StopTTL, cacheOpts...)),
		api.WithRetryPolicy(api.RetryPolicy{
			MaxRetries: *cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			Multiplier: cfg.Retry.Multiplier,
		}),
	}

	// Cache the station table on disk unless disabled
	if !flagNoCache {
		opts = append(opts, api.WithDefaultCache(cfg.Cache.StationTableTTL))
	}

	return api.NewClient(opts...)
}

// engine creates a search engine paced per the config
func (a *app) engine() *search.Engine {
	return search.NewEngine(a.client,
		search.WithPacer(search.NewIntervalPacer(a.cfg.Pacing)),
		search.WithLogger(a.logger),
	)
}

// monitor wires engine, notifications and the optional history store.
// The returned store is nil when history is disabled.
func (a *app) monitor(ctx context.Context, console io.Writer) (*monitor.Monitor, *store.Store, error) {
	manager, err := notify.FromConfig(a.cfg.Notifications, notify.Options{
		Console: console,
		Colors:  a.colors,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("notifications configured", "transports", manager.Names())

	opts := []monitor.Option{
		monitor.WithLogger(a.logger),
		monitor.WithLocation(a.client.Timezone()),
	}

	var history *store.Store
	if a.cfg.History != nil {
		history, err = store.Open(ctx, a.cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, monitor.WithHistory(history))
	}

	return monitor.New(a.cfg, a.engine(), manager, opts...), history, nil
}

// logWriter returns the --log-file writer, or fallback when unset
func logWriter(fallback io.Writer) (io.Writer, func(), error) {
	if flagLogFile == "" {
		return fallback, func() {}, nil
	}
	f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// getColorMode returns the color mode based on flag
func getColorMode() output.ColorMode {
	return output.ParseColorMode(flagColor)
}
