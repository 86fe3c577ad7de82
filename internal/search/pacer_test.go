package search

import (
	"context"
	"testing"
	"time"

	"github.com/railwatch/crtm/internal/testutil"
)

func TestIntervalPacer(t *testing.T) {
	p := NewIntervalPacer(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		testutil.AssertNil(t, p.Wait(ctx))
	}
	// First call passes at once, the next two wait one interval each
	testutil.AssertTrue(t, time.Since(start) >= 35*time.Millisecond)
}

func TestIntervalPacer_Cancelled(t *testing.T) {
	p := NewIntervalPacer(time.Hour)
	testutil.AssertNil(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	testutil.AssertErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestIntervalPacer_Deadline(t *testing.T) {
	p := NewIntervalPacer(time.Hour)
	testutil.AssertNil(t, p.Wait(context.Background()))

	// A deadline shorter than the gap fails without sleeping
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	testutil.AssertError(t, p.Wait(ctx))
	testutil.AssertTrue(t, time.Since(start) < 40*time.Millisecond)
}

func TestIntervalPacer_Disabled(t *testing.T) {
	p := NewIntervalPacer(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		testutil.AssertNil(t, p.Wait(ctx))
	}
	testutil.AssertTrue(t, time.Since(start) < 20*time.Millisecond)
}

func TestNopPacer(t *testing.T) {
	testutil.AssertNil(t, NopPacer{}.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	testutil.AssertError(t, NopPacer{}.Wait(ctx))
}
