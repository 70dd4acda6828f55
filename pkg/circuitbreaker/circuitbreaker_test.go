package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("service down")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return errDown
		})
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	failN(cb, 2)
	assert.True(t, cb.IsClosed())

	failN(cb, 1)
	assert.True(t, cb.IsOpen())

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Fatal("should not be called while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	failN(cb, 2)
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))
	failN(cb, 2)

	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	failN(cb, 1)
	require.True(t, cb.IsOpen())

	time.Sleep(15 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	failN(cb, 1)
	time.Sleep(15 * time.Millisecond)

	failN(cb, 1)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_HalfOpenLimitsRequests(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(5),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(1),
	)

	failN(cb, 1)
	time.Sleep(15 * time.Millisecond)

	// First probe is allowed but does not close the circuit yet.
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
	close(release)
}

func TestCircuitBreaker_ExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	failN(cb, 1)

	called := false
	err := cb.ExecuteWithFallback(context.Background(),
		func(ctx context.Context) error { return nil },
		func(cause error) error {
			called = true
			assert.ErrorIs(t, cause, ErrCircuitOpen)
			return nil
		})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool {
			return errors.Is(err, errDown)
		}),
	)

	// Errors the filter rejects do not trip the breaker.
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("not found")
	})
	assert.True(t, cb.IsClosed())

	failN(cb, 1)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := New("chat-api",
		WithFailureThreshold(1),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		}),
	)

	failN(cb, 1)
	assert.Equal(t, []string{"chat-api:closed->open"}, transitions)
}

func TestCircuitBreaker_CountsAndReset(t *testing.T) {
	cb := New("test", WithFailureThreshold(10))

	failN(cb, 2)
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))

	counts := cb.Counts()
	assert.Equal(t, 3, counts.Requests)
	assert.Equal(t, 2, counts.TotalFailures)
	assert.Equal(t, 1, counts.TotalSuccesses)

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Zero(t, cb.Counts().Requests)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
