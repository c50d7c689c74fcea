// Package backoff implements the retry policy applied around paginated
// remote listing calls. The remote service rate-limits aggressively, so
// retries back off exponentially with jitter instead of hammering.
package backoff

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var errInvalidPolicy = errors.New("backoff: max attempts must be positive")

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of each delay randomized away, in [0, 1).
	Jitter float64
}

// DefaultPolicy is the schedule used for remote page listings.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
	Jitter:      0.2,
}

// Delay returns the sleep before retry number attempt (zero-based).
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) - spread/2 + rand.Float64()*spread)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Retry invokes operation until it succeeds, the policy is exhausted,
// or the context is cancelled. The last operation error is returned on
// exhaustion; context cancellation wins over further attempts.
func (p Policy) Retry(ctx context.Context, operation func() error) error {
	if p.MaxAttempts <= 0 {
		return errInvalidPolicy
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr = operation(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
