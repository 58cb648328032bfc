package providers

import (
	"errors"
	"net"
)

var (
	// ErrRateLimited signals the upstream rejected the request for quota
	// reasons; safe to retry after backoff.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrPlanRestricted signals the requested symbol/interval requires a
	// higher-tier data plan. This is a business-policy failure: callers fall
	// back to a known-safe symbol instead of retrying.
	ErrPlanRestricted = errors.New("symbol requires a higher data plan")

	// ErrTransient marks upstream 5xx responses and similar conditions that
	// are worth retrying.
	ErrTransient = errors.New("transient upstream failure")

	// ErrNotSupported signals the provider variant does not implement the
	// requested capability.
	ErrNotSupported = errors.New("operation not supported by provider")
)

// Retryable reports whether an error is worth another attempt. Plan
// restrictions and malformed requests are not; rate limits, flagged
// transient failures and network timeouts are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPlanRestricted) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
