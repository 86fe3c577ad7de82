// Package search implements the multi-pass ticket discovery engine.
//
// A search runs four sequential passes for one watch entry and date:
//
//	direct       the configured origin/destination pair
//	destination  each train's boarding stop to the stop after the destination
//	origin       the stop before the origin to each train's alighting stop
//	both         both extensions combined
//
// Every pass writes its findings into a caller-owned Collector keyed by route.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/railwatch/crtm/internal/api"
	"github.com/railwatch/crtm/internal/models"
	"github.com/railwatch/crtm/internal/telemetry"
)

// Railway is the upstream surface the engine depends on. *api.Client
// implements it.
type Railway interface {
	StationCode(ctx context.Context, name string) (string, error)
	StationName(ctx context.Context, code string) (string, error)
	QueryTickets(ctx context.Context, q models.Query) ([]string, error)
	StopSequence(ctx context.Context, train *models.ParsedTrain) (models.StopSequence, error)
}

var _ Railway = (*api.Client)(nil)

// Engine runs searches against a Railway
type Engine struct {
	rail   Railway
	pacer  Pacer
	logger *slog.Logger
	tracer trace.Tracer
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithPacer sets the pacer used between upstream calls
func WithPacer(p Pacer) EngineOption {
	return func(e *Engine) {
		e.pacer = p
	}
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine. Calls are paced at DefaultPacing unless
// WithPacer is given.
func NewEngine(rail Railway, opts ...EngineOption) *Engine {
	e := &Engine{
		rail:   rail,
		pacer:  NewIntervalPacer(DefaultPacing),
		logger: slog.Default(),
		tracer: telemetry.Tracer("search"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state of a single Search call
type run struct {
	cfg       *models.SearchConfig
	date      string
	allowed   models.SeatSet
	collector *Collector
	names     map[string]string
	stops     map[string]models.StopSequence
}

// Search runs all four passes for cfg on date, adding findings to collector.
// Only failures of the initial direct query are returned; failures inside
// the extension passes are logged and skipped.
func (e *Engine) Search(ctx context.Context, cfg models.SearchConfig, date string, collector *Collector) (err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "search.run", trace.WithAttributes(
		attribute.String("search.date", date),
		attribute.String("search.from", cfg.From),
		attribute.String("search.to", cfg.To),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		telemetry.RecordSearch(ctx, time.Since(start), err)
	}()

	r := &run{
		cfg:       &cfg,
		date:      date,
		allowed:   cfg.AllowedSeats(),
		collector: collector,
		names:     make(map[string]string),
		stops:     make(map[string]models.StopSequence),
	}

	trains, err := e.direct(ctx, r)
	if err != nil {
		return err
	}

	destination := e.extend(ctx, r, trains, destinationSegment)
	if err := e.extensionPass(ctx, r, PassDestination, destination); err != nil {
		return err
	}

	origin := e.extend(ctx, r, trains, originSegment)
	if err := e.extensionPass(ctx, r, PassOrigin, origin); err != nil {
		return err
	}

	return e.extensionPass(ctx, r, PassBoth, mergeSegments(destination, origin))
}

// direct runs pass 1 and returns every parsed train for the extension passes
func (e *Engine) direct(ctx context.Context, r *run) ([]*models.ParsedTrain, error) {
	ctx, span := e.tracer.Start(ctx, "search.pass", trace.WithAttributes(attribute.String("search.pass", string(PassDirect))))
	defer span.End()

	fromCode, err := e.rail.StationCode(ctx, r.cfg.From)
	if err != nil {
		return nil, fmt.Errorf("resolve origin: %w", err)
	}
	toCode, err := e.rail.StationCode(ctx, r.cfg.To)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}

	filter := e.buildFilter(ctx, r.cfg.TrainsFilter)

	if err := e.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	records, err := e.rail.QueryTickets(ctx, models.Query{Date: r.date, FromCode: fromCode, ToCode: toCode})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	trains := e.parseRecords(records)
	span.SetAttributes(attribute.Int("search.trains", len(trains)))

	for _, train := range trains {
		fromName := e.stationName(ctx, r, train.FromStationCode)
		toName := e.stationName(ctx, r, train.ToStationCode)
		if !filter.accepts(train, fromName, toName) {
			continue
		}
		if !allowedTrain(r.cfg.Trains, train, fromName, toName) {
			continue
		}
		e.evaluate(ctx, r, PassDirect, train, fromName, toName)
	}
	return trains, nil
}

// extend derives one segment per train from its stop sequence. A train whose
// stop sequence cannot be fetched contributes nothing.
func (e *Engine) extend(ctx context.Context, r *run, trains []*models.ParsedTrain, derive func(*models.ParsedTrain, models.StopSequence) (Segment, bool)) []Segment {
	var segments []Segment
	for _, train := range trains {
		if ctx.Err() != nil {
			return segments
		}
		seq, ok := e.stopSequence(ctx, r, train)
		if !ok {
			continue
		}
		if seg, ok := derive(train, seq); ok {
			segments = append(segments, seg)
		}
	}
	return segments
}

func (e *Engine) stopSequence(ctx context.Context, r *run, train *models.ParsedTrain) (models.StopSequence, bool) {
	if seq, ok := r.stops[train.TrainNo]; ok {
		return seq, true
	}
	if err := e.pacer.Wait(ctx); err != nil {
		return nil, false
	}
	seq, err := e.rail.StopSequence(ctx, train)
	if err != nil {
		e.logger.Warn("stop sequence unavailable",
			slog.String("train", train.Code),
			slog.String("train_no", train.TrainNo),
			slog.Any("error", err))
		return nil, false
	}
	r.stops[train.TrainNo] = seq
	return seq, true
}

// extensionPass batches segments by station pair and evaluates the trains
// each batched query returns
func (e *Engine) extensionPass(ctx context.Context, r *run, pass Pass, segments []Segment) error {
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}
	batches := groupSegments(segments)

	ctx, span := e.tracer.Start(ctx, "search.pass", trace.WithAttributes(
		attribute.String("search.pass", string(pass)),
		attribute.Int("search.segments", len(segments)),
		attribute.Int("search.batches", len(batches)),
	))
	defer span.End()

	e.logger.Debug("extension pass",
		slog.String("pass", string(pass)),
		slog.Int("segments", len(segments)),
		slog.Int("batches", len(batches)))

	for _, b := range batches {
		if err := e.pacer.Wait(ctx); err != nil {
			return err
		}
		records, err := e.rail.QueryTickets(ctx, models.Query{Date: r.date, FromCode: b.FromCode, ToCode: b.ToCode})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			e.logger.Warn("batched query failed",
				slog.String("pass", string(pass)),
				slog.String("from", b.FromCode),
				slog.String("to", b.ToCode),
				slog.Any("error", err))
			continue
		}
		for _, train := range e.parseRecords(records) {
			if !b.accepts(train) {
				continue
			}
			fromName := e.stationName(ctx, r, train.FromStationCode)
			toName := e.stationName(ctx, r, train.ToStationCode)
			e.evaluate(ctx, r, pass, train, fromName, toName)
		}
	}
	return nil
}

// parseRecords decodes records, dropping malformed ones
func (e *Engine) parseRecords(records []string) []*models.ParsedTrain {
	trains := make([]*models.ParsedTrain, 0, len(records))
	for _, raw := range records {
		train, err := models.ParseTrain(raw)
		if err != nil {
			e.logger.Warn("dropping malformed record", slog.Any("error", err))
			continue
		}
		trains = append(trains, train)
	}
	return trains
}

// stationName resolves a code for display, falling back to the code itself
func (e *Engine) stationName(ctx context.Context, r *run, code string) string {
	if name, ok := r.names[code]; ok {
		return name
	}
	name, err := e.rail.StationName(ctx, code)
	if err != nil {
		e.logger.Debug("station name unresolved", slog.String("code", code), slog.Any("error", err))
		name = code
	}
	r.names[code] = name
	return name
}

// evaluate checks the exclude list and seat availability, recording a
// finding when tickets remain
func (e *Engine) evaluate(ctx context.Context, r *run, pass Pass, train *models.ParsedTrain, fromName, toName string) {
	if r.cfg.Exclude.Excludes(train.Code, toName) {
		return
	}

	f := Finding{
		Train:      train.Code,
		TrainNo:    train.TrainNo,
		FromName:   fromName,
		FromCode:   train.FromStationCode,
		ToName:     toName,
		ToCode:     train.ToStationCode,
		DepartTime: train.DepartTime,
		ArriveTime: train.ArriveTime,
		Pass:       pass,
	}

	avail := models.Evaluate(train, r.allowed)
	if !avail.Remain {
		msg := "no tickets left"
		if len(r.cfg.SeatCategory) > 0 {
			cats := make([]string, len(r.cfg.SeatCategory))
			for i, c := range r.cfg.SeatCategory {
				cats[i] = string(c)
			}
			msg = strings.Join(cats, "/") + " " + msg
		}
		e.logger.Debug("-", slog.String("train", f.Description()), slog.String("result", msg))
		return
	}

	f.Summary = avail.Summary
	f.Total = avail.TotalLabel()
	f.Link = api.BookingURL(fromName, train.FromStationCode, toName, train.ToStationCode, r.date)

	if r.collector.Add(RouteKey{Date: r.date, From: fromName, To: toName}, f) {
		telemetry.RecordFinding(ctx, string(pass))
		e.logger.Info("tickets found",
			slog.String("pass", string(pass)),
			slog.String("train", f.Description()),
			slog.String("seats", f.Summary),
			slog.String("total", f.Total))
	}
}
