package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2.0,
		MaxRetries:      retries,
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	})

	assert.Equal(t, 100*time.Millisecond, backoff(0))
	assert.Equal(t, 100*time.Millisecond, backoff(1))
	assert.Equal(t, 200*time.Millisecond, backoff(2))
	assert.Equal(t, 400*time.Millisecond, backoff(3))
	assert.Equal(t, time.Second, backoff(10))
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	backoff := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	})
	for i := 0; i < 20; i++ {
		d := backoff(2)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 200*time.Millisecond)
	}
}

func TestWithRetry_EventualSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_Exhausted(t *testing.T) {
	sentinel := errors.New("connection refused")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return sentinel
	}, fastConfig(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWithRetry_NoRetriesReturnsErrorUnwrapped(t *testing.T) {
	sentinel := errors.New("boom")
	err := WithRetry(context.Background(), func() error { return sentinel }, fastConfig(0))
	assert.Same(t, sentinel, err)
}

func TestWithRetry_Stop(t *testing.T) {
	sentinel := errors.New("bad greeting")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return Stop(sentinel)
	}, fastConfig(5))

	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsStopError(Stop(sentinel)))
	assert.False(t, IsStopError(sentinel))
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("refused") }, BackoffConfig{
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
		Multiplier:      1,
		MaxRetries:      3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
