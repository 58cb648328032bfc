package providers

import (
	"context"
	"fmt"
	"time"
)

// Backoff retries an operation with exponential delays. Only errors that
// Retryable classifies as transient are retried.
type Backoff struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultBackoff matches the upstream request profile of a chart refresh:
// fast first retry, capped total wait.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Do runs fn, retrying transient failures until MaxRetries is exhausted or
// ctx is cancelled.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !Retryable(err) {
			return err
		}
		if attempt == b.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(b.delay(attempt)):
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", b.MaxRetries, lastErr)
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.InitialDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Multiplier)
		if d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	if d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}
