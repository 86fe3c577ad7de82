package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/railwatch/crtm/internal/api"
	"github.com/railwatch/crtm/internal/config"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/monitor"
	"github.com/railwatch/crtm/internal/output"
	"github.com/railwatch/crtm/internal/search"
	"github.com/railwatch/crtm/internal/server"
	"github.com/railwatch/crtm/internal/telemetry"
	"github.com/railwatch/crtm/internal/tui"
)

var version = "0.3.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crtm",
	Short: "Monitor China Railway 12306 for remaining tickets",
	Long: `crtm watches China Railway (12306) for remaining tickets and notifies
you when seats show up.

Besides the configured origin and destination, every search also looks at
longer tickets on the same trains: one stop past the destination, one stop
before the origin, and both combined. Buying the longer ticket and riding
only part of it is often the only way to get a seat.

Features:
  - Multi-pass search with extended segments
  - Seat category, train and station/hour filters
  - Notifications via console, Lark, Telegram, WeChat Work and Bark
  - Full-screen dashboard
  - Optional HTTP status API and SQLite history

Quick Start:
  1. Write a config:        crtm init
  2. Start monitoring:      crtm run
  3. One-off search:        crtm check 广州南 长沙南 2026-10-20
  4. Look up stations:      crtm stations 北京西 IZQ
  5. Show a train's stops:  crtm route 广州南 长沙南 2026-10-20 G1002`,
	Version: version,
	Args:    cobra.NoArgs,
	RunE:    runMonitor,
}

// Global flags
var (
	flagConfig   string
	flagColor    string
	flagNoCache  bool
	flagLogLevel string
	flagLogFile  string
	flagJSON     bool
)

// Command flags
var (
	flagOnce  bool
	flagSeats []string
	flagTrain []string
	flagLinks bool
	flagForce bool
)

func init() {
	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(stationsCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(initCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Do not cache the station table on disk")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file instead of the terminal")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")

	runCmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single cycle and exit")

	checkCmd.Flags().StringSliceVarP(&flagSeats, "seat", "s", nil, "Only report these seat categories (e.g. 二等座,硬卧)")
	checkCmd.Flags().StringSliceVarP(&flagTrain, "train", "t", nil, "Only report these train codes")
	checkCmd.Flags().BoolVarP(&flagLinks, "links", "l", false, "Show booking links")

	initCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Overwrite an existing config file")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ticket monitor",
	Long: `Run the monitoring loop from the config file.

Every cycle searches each watch entry's dates (only dates between today and
15 days ahead), then sends one notification per route with tickets. Cycles
repeat every 'interval' minutes until interrupted.

When the config has a 'server' section the status API is served alongside,
and a 'history' section records every reported ticket in SQLite.

Examples:
  crtm run
  crtm run --config ~/crtm.yml
  crtm run --once --json`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var checkCmd = &cobra.Command{
	Use:   "check <from> <to> <date>",
	Short: "Search once for remaining tickets",
	Long: `Run a single search (all four passes) and print what was found.

The date is YYYY-MM-DD. Station arguments are display names as used by 12306.

Examples:
  crtm check 广州南 长沙南 2026-10-20
  crtm check 北京 上海 2026-10-20 --seat 二等座,一等座
  crtm check 北京 上海 2026-10-20 --train G1,G3 --links
  crtm check 北京 上海 2026-10-20 --json`,
	Args: cobra.ExactArgs(3),
	RunE: runCheck,
}

var stationsCmd = &cobra.Command{
	Use:   "stations <name|code>...",
	Short: "Look up station codes and names",
	Long: `Resolve station display names to codes and codes to names.

Examples:
  crtm stations 北京西
  crtm stations IZQ CWQ
  crtm stations 广州南 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStations,
}

var routeCmd = &cobra.Command{
	Use:   "route <from> <to> <date> <train>",
	Short: "Show a train's stops",
	Long: `Show every stop of a train with the queried segment marked.

The train must run between <from> and <to> on <date>.

Examples:
  crtm route 广州南 长沙南 2026-10-20 G1002
  crtm route 北京西 武汉 2026-10-20 G71 --json`,
	Args: cobra.ExactArgs(4),
	RunE: runRoute,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the monitoring dashboard",
	Long: `Launch a full-screen dashboard that runs the monitor and shows the
findings of the latest cycle.

Logs are discarded unless --log-file is given.

Keyboard shortcuts:
  Tab          Switch between watch list and findings
  j/k, ↑/↓     Navigate / scroll
  r            Run a cycle now
  p            Pause or resume scheduled cycles
  q            Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := output.SignalContext(context.Background())
	defer stop()

	logOut, closeLog, err := logWriter(os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := setup(logOut, true)
	if err != nil {
		return err
	}
	defer a.close()

	shutdown := telemetry.Init()
	defer shutdown()

	mon, history, err := a.monitor(ctx, os.Stdout)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	if a.cfg.Server != nil {
		opts := server.Options{Reports: mon, Caches: a.client, Logger: a.logger, Version: version}
		if history != nil {
			opts.History = history
		}
		go func() {
			if err := server.Serve(ctx, a.cfg.Server.Listen, server.New(opts), a.logger); err != nil {
				a.logger.Error("status API stopped", "error", err)
			}
		}()
	}

	if flagOnce {
		report := mon.RunCycle(ctx)
		if flagJSON {
			return printJSON(report)
		}
		printReport(os.Stdout, report, a.colors)
		_, _ = fmt.Fprintln(os.Stdout)
		output.RenderCacheStats(os.Stdout, a.client.CacheStats(), output.TableOptions{Colors: a.colors})
		return nil
	}

	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := output.SignalContext(context.Background())
	defer stop()

	from, to, date := args[0], args[1], args[2]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}

	sc := models.SearchConfig{Date: models.Dates{date}, From: from, To: to}
	for _, s := range flagSeats {
		seat := models.SeatCategory(strings.TrimSpace(s))
		if !seat.IsValid() {
			return fmt.Errorf("unknown seat category %q", s)
		}
		sc.SeatCategory = append(sc.SeatCategory, seat)
	}
	for _, code := range flagTrain {
		sc.Trains = append(sc.Trains, models.TrainRule{Code: strings.ToUpper(strings.TrimSpace(code))})
	}

	// Logs go to stderr so JSON output stays clean
	a, err := setup(os.Stderr, false)
	if err != nil {
		return err
	}
	defer a.close()

	collector := search.NewCollector()
	if err := a.engine().Search(ctx, sc, date, collector); err != nil {
		return err
	}

	routes := collector.Snapshot()
	if flagJSON {
		return printJSON(routes)
	}
	output.RenderFindings(os.Stdout, routes, output.TableOptions{
		Colors:    a.colors,
		ShowLinks: flagLinks,
		ShowPass:  true,
	})
	return nil
}

func runStations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(os.Stderr, false)
	if err != nil {
		return err
	}
	defer a.close()

	var stations []models.Station
	for _, arg := range args {
		station, err := lookupStation(ctx, a.client, arg)
		if errors.Is(err, api.ErrStationNotFound) {
			_, _ = fmt.Fprintf(os.Stderr, "No station matches %q\n", arg)
			continue
		}
		if err != nil {
			return err
		}
		stations = append(stations, station)
	}

	if flagJSON {
		if stations == nil {
			stations = []models.Station{}
		}
		return printJSON(stations)
	}
	output.RenderStations(os.Stdout, stations, output.TableOptions{Colors: a.colors})
	return nil
}

// lookupStation treats arg as a display name first, then as a code
func lookupStation(ctx context.Context, client *api.Client, arg string) (models.Station, error) {
	code, err := client.StationCode(ctx, arg)
	if err == nil {
		return models.Station{Name: arg, Code: code}, nil
	}
	if !errors.Is(err, api.ErrStationNotFound) {
		return models.Station{}, err
	}

	name, err := client.StationName(ctx, strings.ToUpper(arg))
	if err != nil {
		return models.Station{}, err
	}
	return models.Station{Name: name, Code: strings.ToUpper(arg)}, nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx, stop := output.SignalContext(context.Background())
	defer stop()

	from, to, date, code := args[0], args[1], args[2], strings.ToUpper(args[3])

	a, err := setup(os.Stderr, false)
	if err != nil {
		return err
	}
	defer a.close()

	train, err := findTrain(ctx, a.client, from, to, date, code)
	if err != nil {
		return err
	}

	stops, err := a.client.StopSequence(ctx, train)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(stops)
	}
	output.RenderStops(os.Stdout, train.Code, stops, train.FromStationCode, train.ToStationCode,
		output.TableOptions{Colors: a.colors})
	return nil
}

// findTrain queries from→to on date and returns the train with the given code
func findTrain(ctx context.Context, client *api.Client, from, to, date, code string) (*models.ParsedTrain, error) {
	fromCode, err := client.StationCode(ctx, from)
	if err != nil {
		return nil, err
	}
	toCode, err := client.StationCode(ctx, to)
	if err != nil {
		return nil, err
	}

	records, err := client.QueryTickets(ctx, models.Query{Date: date, FromCode: fromCode, ToCode: toCode})
	if err != nil {
		return nil, err
	}
	for _, raw := range records {
		train, err := models.ParseTrain(raw)
		if err != nil {
			continue
		}
		if strings.EqualFold(train.Code, code) {
			return train, nil
		}
	}
	return nil, fmt.Errorf("train %s not found between %s and %s on %s", code, from, to, date)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := output.SignalContext(context.Background())
	defer stop()

	logOut, closeLog, err := logWriter(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := setup(logOut, true)
	if err != nil {
		return err
	}
	defer a.close()

	shutdown := telemetry.Init()
	defer shutdown()

	// Console notifications would draw over the dashboard
	mon, history, err := a.monitor(ctx, io.Discard)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	p := tea.NewProgram(tui.New(ctx, mon, a.client), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	if flagForce {
		if err := os.Remove(flagConfig); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := config.WriteExample(flagConfig); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", flagConfig)
		}
		return err
	}
	fmt.Printf("Wrote example configuration to %s\n", flagConfig)
	return nil
}

// printReport renders a cycle report: findings, then failures and skipped dates
func printReport(w io.Writer, r monitor.Report, colors *output.Colors) {
	output.RenderFindings(w, r.Routes, output.TableOptions{Colors: colors, ShowPass: true})

	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "%s %s %s → %s: %s\n",
			colors.Error("failed"), f.Route.Date, f.Route.From, f.Route.To, f.Error)
	}
	for _, k := range r.Skipped {
		_, _ = fmt.Fprintf(w, "%s %s %s → %s (outside the %d-day window)\n",
			colors.Muted("skipped"), k.Date, k.From, k.To, monitor.WindowDays)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
