// Package messaging implements event bus functionality for GuildXP.
// It provides both in-memory and Redis-based event buses for event-driven architecture.
package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when publishing on a closed bus.
	ErrEventBusClosed = errors.New("messaging: event bus is closed")

	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("messaging: event cannot be nil")

	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("messaging: handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers events to handlers within a single process.
// Suitable for single-instance deployments and testing; multi-process
// deployments wrap it in a RedisEventBus.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	closed      bool

	async   bool
	slots   chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *EventBusMetrics
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize caps concurrent handlers in async mode.
	WorkerPoolSize int

	Logger *slog.Logger

	// EnableMetrics enables publish and handler counters.
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		async:    config.AsyncMode,
		slots:    make(chan struct{}, config.WorkerPoolSize),
		done:     make(chan struct{}),
		logger:   config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}

	return bus
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)

	return nil
}

// SubscribeAll registers a handler that receives every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")

	return nil
}

// Publish delivers an event to every matching handler. In async mode the
// call returns before handlers run; handler errors are logged, never
// returned.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	targets = append(targets, b.handlers[event.EventType()]...)
	targets = append(targets, b.allHandlers...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	for _, h := range targets {
		if b.async {
			b.spawn(event, h)
			continue
		}
		if err := b.invoke(event, h); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}

	return nil
}

// spawn runs the handler on the worker pool.
func (b *InMemoryEventBus) spawn(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.slots <- struct{}{}:
			defer func() { <-b.slots }()
		case <-b.done:
			return
		}

		if err := b.invoke(event, handler); err != nil {
			b.logger.Error("async handler error", "event_type", event.EventType(), "error", err)
		}
	}()
}

// invoke runs the handler and records its timing.
func (b *InMemoryEventBus) invoke(event shared.Event, handler shared.EventHandler) error {
	start := time.Now()
	err := handler(event)

	if b.metrics != nil {
		b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)
	}

	return err
}

// Close stops accepting events and waits for in-flight handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus counters, or nil when metrics are disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics tracks publish and handler counters per event type.
type EventBusMetrics struct {
	mu                sync.RWMutex
	published         map[shared.EventType]int64
	handled           map[shared.EventType]int64
	failed            map[shared.EventType]int64
	totalHandlerTime  time.Duration
	handlerExecutions int64
}

// NewEventBusMetrics creates a new metrics collector.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		published: make(map[shared.EventType]int64),
		handled:   make(map[shared.EventType]int64),
		failed:    make(map[shared.EventType]int64),
	}
}

// RecordPublish counts one published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventType]++
}

// RecordHandlerExecution counts one handler run and its duration.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlerExecutions++
	m.totalHandlerTime += duration

	if success {
		m.handled[eventType]++
	} else {
		m.failed[eventType]++
	}
}

// Snapshot returns a point-in-time view of the metrics.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := EventBusMetricsSnapshot{
		TotalPublished: total(m.published),
		TotalHandled:   total(m.handled),
		TotalFailed:    total(m.failed),
		SuccessRate:    m.successRate(),
	}
	if m.handlerExecutions > 0 {
		snap.AvgHandlerTime = m.totalHandlerTime / time.Duration(m.handlerExecutions)
	}

	return snap
}

func total(counts map[shared.EventType]int64) int64 {
	var sum int64
	for _, v := range counts {
		sum += v
	}
	return sum
}

func (m *EventBusMetrics) successRate() float64 {
	handled := total(m.handled)
	failed := total(m.failed)
	if handled+failed == 0 {
		return 1.0
	}
	return float64(handled) / float64(handled+failed)
}

// Reset clears all counters.
func (m *EventBusMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.published = make(map[shared.EventType]int64)
	m.handled = make(map[shared.EventType]int64)
	m.failed = make(map[shared.EventType]int64)
	m.totalHandlerTime = 0
	m.handlerExecutions = 0
}

// EventBusMetricsSnapshot is a point-in-time view of bus metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished int64
	TotalHandled   int64
	TotalFailed    int64
	SuccessRate    float64
	AvgHandlerTime time.Duration
}
