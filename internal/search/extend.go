package search

import (
	"github.com/railwatch/crtm/internal/models"
)

// Segment is a boarding/alighting pair along one train's stop sequence.
// A segment is valid only when both ends are known.
type Segment struct {
	TrainNo string
	From    *models.Stop
	To      *models.Stop
}

// Valid reports whether both ends resolved to a station code
func (s Segment) Valid() bool {
	return s.From != nil && s.To != nil && s.From.StationCode != "" && s.To.StationCode != ""
}

// ExpectedArrive is the arrival time at the alighting stop
func (s Segment) ExpectedArrive() string {
	if s.To == nil {
		return ""
	}
	return s.To.ArriveTime
}

// nextIndex picks the stop after i. When i is the third-from-last stop the
// terminus is used instead of the stop in between. ok is false when i is the
// first or last stop or the sequence has no room to extend.
func nextIndex(i, n int) (int, bool) {
	if n <= 2 || i <= 0 || i >= n-1 {
		return 0, false
	}
	if i == n-3 {
		return n - 1, true
	}
	return i + 1, true
}

// destinationSegment keeps the boarding stop and moves the alighting stop
// one stop past the requested destination.
func destinationSegment(train *models.ParsedTrain, seq models.StopSequence) (Segment, bool) {
	next, ok := nextIndex(seq.IndexOf(train.ToStationCode), len(seq))
	if !ok {
		return Segment{}, false
	}
	from := seq.IndexOf(train.FromStationCode)
	if from < 0 {
		return Segment{}, false
	}
	seg := Segment{TrainNo: train.TrainNo, From: &seq[from], To: &seq[next]}
	return seg, seg.Valid()
}

// originSegment keeps the alighting stop and moves the boarding stop one stop
// before the requested origin, applying the same rule on the reversed sequence.
func originSegment(train *models.ParsedTrain, seq models.StopSequence) (Segment, bool) {
	rev := seq.Reversed()
	next, ok := nextIndex(rev.IndexOf(train.FromStationCode), len(rev))
	if !ok {
		return Segment{}, false
	}
	to := rev.IndexOf(train.ToStationCode)
	if to < 0 {
		return Segment{}, false
	}
	seg := Segment{TrainNo: train.TrainNo, From: &rev[next], To: &rev[to]}
	return seg, seg.Valid()
}

// mergeSegments combines both extensions of the same train: the origin
// extension's boarding stop with the destination extension's alighting stop.
// Trains missing from either list are dropped.
func mergeSegments(destination, origin []Segment) []Segment {
	byTrain := make(map[string]Segment, len(origin))
	for _, s := range origin {
		byTrain[s.TrainNo] = s
	}

	var merged []Segment
	for _, d := range destination {
		o, ok := byTrain[d.TrainNo]
		if !ok {
			continue
		}
		seg := Segment{TrainNo: d.TrainNo, From: o.From, To: d.To}
		if seg.Valid() {
			merged = append(merged, seg)
		}
	}
	return merged
}
