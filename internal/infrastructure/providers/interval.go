package providers

import (
	"fmt"
	"time"
)

// intervalDurations maps the generic interval tokens used across the service
// to their bucket duration. "D"/"W"/"M" follow the charting convention of
// single-letter day/week/month tokens.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"D":   24 * time.Hour,
	"1d":  24 * time.Hour,
	"W":   7 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"M":   30 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

// IntervalDuration resolves a generic interval token to its duration.
func IntervalDuration(token string) (time.Duration, error) {
	d, ok := intervalDurations[token]
	if !ok {
		return 0, fmt.Errorf("unknown interval token: %q", token)
	}
	return d, nil
}
