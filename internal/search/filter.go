package search

import (
	"context"
	"log/slog"

	"github.com/railwatch/crtm/internal/models"
)

// stationFilter is a TrainsFilter with its station names resolved to codes.
// A side with no names and no codes is unrestricted.
type stationFilter struct {
	fromNames map[string]struct{}
	fromCodes map[string]struct{}
	toNames   map[string]struct{}
	toCodes   map[string]struct{}
	beginHour *int
	endHour   *int
}

func newSet(values ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, vs := range values {
		for _, v := range vs {
			if v != "" {
				set[v] = struct{}{}
			}
		}
	}
	return set
}

func (e *Engine) buildFilter(ctx context.Context, tf *models.TrainsFilter) *stationFilter {
	if tf == nil {
		return nil
	}
	f := &stationFilter{
		fromNames: newSet(tf.From),
		fromCodes: newSet(tf.FromTeleCode, e.resolveCodes(ctx, tf.From)),
		toNames:   newSet(tf.To),
		toCodes:   newSet(tf.ToTeleCode, e.resolveCodes(ctx, tf.To)),
		beginHour: tf.BeginHour,
		endHour:   tf.EndHour,
	}
	return f
}

// resolveCodes maps station names to codes, skipping names the directory
// does not know
func (e *Engine) resolveCodes(ctx context.Context, names []string) []string {
	codes := make([]string, 0, len(names))
	for _, name := range names {
		code, err := e.rail.StationCode(ctx, name)
		if err != nil {
			e.logger.Warn("trains_filter station not resolved", slog.String("station", name), slog.Any("error", err))
			continue
		}
		codes = append(codes, code)
	}
	return codes
}

func matchSide(names, codes map[string]struct{}, name, code string) bool {
	if len(names) == 0 && len(codes) == 0 {
		return true
	}
	if _, ok := codes[code]; ok {
		return true
	}
	_, ok := names[name]
	return ok
}

// accepts applies the station and hour restrictions
func (f *stationFilter) accepts(train *models.ParsedTrain, fromName, toName string) bool {
	if f == nil {
		return true
	}
	if !matchSide(f.fromNames, f.fromCodes, fromName, train.FromStationCode) {
		return false
	}
	if !matchSide(f.toNames, f.toCodes, toName, train.ToStationCode) {
		return false
	}
	if f.beginHour != nil {
		h := train.DepartHour()
		if h < 0 || h < *f.beginHour {
			return false
		}
	}
	if f.endHour != nil {
		h := train.ArriveHour()
		if h < 0 || h > *f.endHour {
			return false
		}
	}
	return true
}

// allowedTrain applies the explicit train allow-list; an empty list allows all
func allowedTrain(rules []models.TrainRule, train *models.ParsedTrain, fromName, toName string) bool {
	if len(rules) == 0 {
		return true
	}
	for _, r := range rules {
		if r.Matches(train.Code, fromName, toName) {
			return true
		}
	}
	return false
}
