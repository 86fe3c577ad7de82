package search

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPacing is the minimum gap between upstream calls made by the engine
const DefaultPacing = 500 * time.Millisecond

// Pacer spaces out upstream calls. Wait blocks until the next call may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer is a minimum-interval gate: consecutive Wait calls return at
// least interval apart. The first call returns immediately.
type IntervalPacer struct {
	limiter *rate.Limiter
}

// NewIntervalPacer creates a pacer with the given minimum interval.
// A non-positive interval never waits.
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalPacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until interval has passed since the previous call was let through
func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NopPacer never waits
type NopPacer struct{}

// Wait returns immediately unless ctx is already done
func (NopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
