package dispatch

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is exponential backoff with jitter, parameterized per
// call site (spec §4.5 command sends vs §4.6 heartbeat reconnect probes use
// distinct tunables).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64 // fraction of the computed delay, e.g. 0.1 for ±10%
}

// CommandSendRetryPolicy is the retry policy for outbound command dispatch:
// 3 retries, 1s base, 10s cap, ±10% jitter (spec §4.5).
var CommandSendRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
	Jitter:     0.1,
}

// HeartbeatReconnectRetryPolicy is the retry policy for the heartbeat
// monitor's bypass STATUS reconnect probe: 2 attempts, 2s base (spec §4.6).
var HeartbeatReconnectRetryPolicy = RetryPolicy{
	MaxRetries: 2,
	BaseDelay:  2 * time.Second,
	MaxDelay:   2 * time.Second,
	Jitter:     0.1,
}

// delay returns the backoff delay before attempt (0-indexed), with jitter
// applied as a uniform +/- fraction around the exponential value.
func (p RetryPolicy) delay(attempt int) time.Duration {
	base := float64(p.BaseDelay) * pow2(attempt)
	if maxDelay := float64(p.MaxDelay); base > maxDelay {
		base = maxDelay
	}
	if p.Jitter > 0 {
		spread := base * p.Jitter
		base += (rand.Float64()*2 - 1) * spread
		if base < 0 {
			base = 0
		}
	}
	return time.Duration(base)
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

// RetriableFunc performs one attempt and reports whether the failure (if
// any) is retriable.
type RetriableFunc func(ctx context.Context) (retriable bool, err error)

// Run executes fn, retrying per the policy while fn reports a retriable
// failure, sleeping between attempts (respecting ctx cancellation). It
// returns the last error, or nil on success.
func (p RetryPolicy) Run(ctx context.Context, fn RetriableFunc) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		retriable, err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable || attempt == p.MaxRetries {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
	return lastErr
}
