package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errThrottled = NewTransientError(errors.New("throttled"), 429)

func newTestBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: threshold, Cooldown: time.Minute})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func fail(cb *CircuitBreaker, err error) error {
	return cb.Execute(context.Background(), func(context.Context) error { return err })
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, fail(cb, errThrottled), errThrottled)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb, _ := newTestBreaker(2)
	for i := 0; i < 5; i++ {
		_ = fail(cb, errors.New("REQUEST_DENIED"))
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2)
	_ = fail(cb, errThrottled)
	_ = fail(cb, nil)
	_ = fail(cb, errThrottled)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = fail(cb, errThrottled)
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A failed trial call reopens for another cooldown.
	_ = fail(cb, errThrottled)
	assert.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(time.Minute)
	require.NoError(t, fail(cb, nil))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = fail(cb, errThrottled)
	*now = now.Add(time.Minute)

	err := cb.Execute(context.Background(), func(context.Context) error {
		// A concurrent caller is rejected while the trial call is in flight.
		assert.ErrorIs(t, fail(cb, nil), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("google", CircuitBreakerConfig{})
	assert.Equal(t, DefaultCircuitBreakerConfig(), cb.cfg)
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}
