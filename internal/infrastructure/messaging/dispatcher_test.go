package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDispatcher(bus shared.EventBus) *Dispatcher {
	cfg := DefaultDispatcherConfig(bus)
	cfg.RetryConfig = RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	return NewDispatcher(cfg)
}

func TestDispatcher_DispatchesToRegisteredHandler(t *testing.T) {
	d := testDispatcher(syncBus())
	defer d.Stop()

	var got shared.Event
	require.NoError(t, d.RegisterSync(shared.EventLevelUp, "tally", func(event shared.Event) error {
		got = event
		return nil
	}))

	event := shared.NewLevelUpEvent("1:2", 1, 2, "alice", 0, 1, 120)
	require.NoError(t, d.Dispatch(event))
	require.NotNil(t, got)
	assert.Equal(t, shared.EventLevelUp, got.EventType())
}

func TestDispatcher_UnhandledEventIsNoOp(t *testing.T) {
	d := testDispatcher(syncBus())
	defer d.Stop()

	assert.NoError(t, d.Dispatch(shared.NewXPAwardedEvent("1:2", 1, 2, 15, 15)))
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := testDispatcher(syncBus())
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventLevelUp, "flaky", func(shared.Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, d.Dispatch(shared.NewLevelUpEvent("1:2", 1, 2, "alice", 0, 1, 120)))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, d.DeadLetterQueue().Size())
}

func TestDispatcher_ExhaustedRetriesLandInDeadLetterQueue(t *testing.T) {
	d := testDispatcher(syncBus())
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventLevelUp, "broken", func(shared.Event) error {
		attempts++
		return errors.New("permanent")
	}))

	err := d.Dispatch(shared.NewLevelUpEvent("1:2", 1, 2, "alice", 0, 1, 120))
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)

	dlq := d.DeadLetterQueue()
	require.Equal(t, 1, dlq.Size())

	entry, ok := dlq.Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, 0, dlq.Size())
}

func TestDispatcher_RecoveryMiddlewareTurnsPanicIntoError(t *testing.T) {
	d := testDispatcher(syncBus())
	defer d.Stop()
	d.Use(RecoveryMiddleware(discardLogger()))

	require.NoError(t, d.RegisterHandler(shared.EventLevelUp, HandlerRegistration{
		Name:       "panicky",
		MaxRetries: 1,
		Handler: func(shared.Event) error {
			panic("boom")
		},
	}))

	err := d.Dispatch(shared.NewLevelUpEvent("1:2", 1, 2, "alice", 0, 1, 120))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestDispatcher_StartBridgesBusToHandlers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	d := testDispatcher(bus)
	defer d.Stop()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, d.RegisterSync(shared.EventXPAwarded, "counter", func(shared.Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("1:2", 1, 2, 15, 15)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestDispatcher_RegisterRejectsNilHandler(t *testing.T) {
	d := testDispatcher(syncBus())
	defer d.Stop()

	assert.ErrorIs(t, d.Register(shared.EventLevelUp, "nil", nil), ErrNilHandler)
}

func TestDeadLetterQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewDeadLetterQueue(2)

	for i := 0; i < 3; i++ {
		q.Add(DeadLetterEntry{HandlerName: string(rune('a' + i)), FailedAt: time.Now()})
	}

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}
