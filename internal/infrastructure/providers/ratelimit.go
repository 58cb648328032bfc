package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter throttles outgoing requests against one upstream API.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter builds a limiter from a per-minute budget with a burst of 10%
// of the budget (at least one).
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until the limiter admits the request or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", l.name, err)
	}
	return nil
}
