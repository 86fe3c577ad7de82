package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/railwatch/crtm/internal/telemetry"
)

// Default retry schedule: 1s, 2s, 4s
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMultiplier = 2.0
)

// RetryPolicy is a bounded exponential backoff without jitter.
// The delay before retry n (0-based) is BaseDelay * Multiplier^n.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// DefaultRetryPolicy returns the 1s/2s/4s policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
	}
}

// BackOff builds the backoff schedule for one request
func (p RetryPolicy) BackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = 24 * time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// fetch performs a GET through doRequest, retrying network failures and
// non-2xx responses. Cancellation is never retried.
func (c *Client) fetch(ctx context.Context, reqURL string, opts ...requestOption) ([]byte, error) {
	endpoint := extractEndpoint(reqURL)

	var (
		body     []byte
		lastErr  error
		attempts int
	)
	operation := func() error {
		attempts++
		data, err := c.doRequest(ctx, reqURL, opts...)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrTimeout) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		telemetry.RecordRetry(ctx, endpoint)
		c.logger.Debug("retrying upstream request",
			"endpoint", endpoint,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(c.retry.BackOff(), ctx), notify)
	telemetry.RecordUpstream(ctx, endpoint, err)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, ErrTimeout) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return nil, newNetworkError(endpoint, attempts, lastErr)
}
