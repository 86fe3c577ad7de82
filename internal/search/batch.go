package search

import (
	"github.com/railwatch/crtm/internal/models"
)

// batch is one upstream query covering every segment with the same
// boarding and alighting codes
type batch struct {
	FromCode     string
	ToCode       string
	ArriveTimes  []string
	arriveLookup map[string]struct{}
}

// accepts reports whether a train returned by the batched query is one of
// the trains that formed the batch, matched on arrival time
func (b *batch) accepts(train *models.ParsedTrain) bool {
	_, ok := b.arriveLookup[train.ArriveTime]
	return ok
}

// groupSegments batches segments by (from, to) code pair, in first-seen order
func groupSegments(segments []Segment) []*batch {
	var (
		order []*batch
		index = make(map[string]*batch)
	)
	for _, s := range segments {
		if !s.Valid() {
			continue
		}
		key := s.From.StationCode + "_" + s.To.StationCode
		b, ok := index[key]
		if !ok {
			b = &batch{
				FromCode:     s.From.StationCode,
				ToCode:       s.To.StationCode,
				arriveLookup: make(map[string]struct{}),
			}
			index[key] = b
			order = append(order, b)
		}
		arrive := s.ExpectedArrive()
		if _, dup := b.arriveLookup[arrive]; !dup {
			b.arriveLookup[arrive] = struct{}{}
			b.ArriveTimes = append(b.ArriveTimes, arrive)
		}
	}
	return order
}
