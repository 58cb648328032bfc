package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalDuration(t *testing.T) {
	for token, want := range map[string]time.Duration{
		"1m": time.Minute,
		"4h": 4 * time.Hour,
		"D":  24 * time.Hour,
	} {
		got, err := IntervalDuration(token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := IntervalDuration("90s")
	assert.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrRateLimited))
	assert.True(t, Retryable(fmt.Errorf("wrapped: %w", ErrTransient)))
	assert.False(t, Retryable(ErrPlanRestricted))
	assert.False(t, Retryable(errors.New("parse error")))
	assert.False(t, Retryable(nil))
}

func TestBackoffStopsOnPermanentError(t *testing.T) {
	b := Backoff{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	var calls int
	err := b.Do(context.Background(), func() error {
		calls++
		return ErrPlanRestricted
	})

	assert.ErrorIs(t, err, ErrPlanRestricted)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetriesUntilSuccess(t *testing.T) {
	b := Backoff{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	var calls int
	err := b.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffGivesUpAfterMaxRetries(t *testing.T) {
	b := Backoff{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	var calls int
	err := b.Do(context.Background(), func() error {
		calls++
		return ErrTransient
	})

	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestBackoffHonorsContext(t *testing.T) {
	b := Backoff{MaxRetries: 10, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func() error { return ErrTransient })
	assert.ErrorIs(t, err, context.Canceled)
}
