package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts() []Option {
	return []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
		WithJitter(0),
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttemptsAndUnwraps(t *testing.T) {
	boom := errors.New("still down")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(boom)
	}, fastOpts()...)

	assert.Equal(t, 3, calls)
	assert.Equal(t, boom, err)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(boom)
	}, fastOpts()...)

	assert.Equal(t, 1, calls)
	assert.Equal(t, boom, err)
}

func TestDo_PlainErrorIsNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("plain")
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomRetryIf(t *testing.T) {
	calls := 0
	opts := append(fastOpts(), WithRetryIf(func(err error) bool {
		return err.Error() == "retry me"
	}))

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("retry me")
		}
		return nil
	}, opts...)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := Retryable(errors.New("transient"))

	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return boom
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	opts := append(fastOpts(), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}))

	_ = Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errors.New("transient"))
	}, opts...)

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCalculateDelay_BackoffAndCap(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMultiplier(2.0),
		WithMaxDelay(25*time.Millisecond),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(3))
}

func TestRetryableAndPermanentWrappers(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	boom := errors.New("boom")
	assert.True(t, IsRetryable(Retryable(boom)))
	assert.False(t, IsRetryable(boom))
	assert.True(t, IsPermanent(Permanent(boom)))
	assert.False(t, IsPermanent(boom))
	assert.ErrorIs(t, Retryable(boom), boom)
}
