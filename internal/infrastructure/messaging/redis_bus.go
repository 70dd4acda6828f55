package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// Pub/Sub based bus for deployments where the bot and worker run as
// separate processes: the worker listens for progression events published
// by the bot (cache invalidation, export bookkeeping) without sharing
// memory with it.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEventChannel is the Redis channel events are published on.
const DefaultEventChannel = "guildxp:events"

// RedisClient abstracts the pub/sub operations the bus needs, so tests can
// substitute a fake transport.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage is one message delivered by a subscription.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisEventBus bridges a local in-memory bus over Redis Pub/Sub. Publishes
// go to both Redis and the local handlers; messages arriving from Redis are
// replayed into the local bus unless this instance published them.
type RedisEventBus struct {
	client      RedisClient
	localBus    *InMemoryEventBus
	channelName string
	instanceID  string
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// RedisEventBusConfig configures a RedisEventBus.
type RedisEventBusConfig struct {
	Client RedisClient

	// ChannelName overrides DefaultEventChannel.
	ChannelName string

	// InstanceID identifies this process. Events carrying our own ID are
	// dropped on receipt since they were already delivered locally.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig

	Logger *slog.Logger
}

// NewRedisEventBus builds the bus and starts its subscription listener.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("messaging: redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = DefaultEventChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.New().String()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisEventBus{
		client:      config.Client,
		localBus:    NewInMemoryEventBus(config.LocalBusConfig),
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		logger:      config.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	messages, err := b.client.Subscribe(b.ctx, b.channelName)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start subscriber: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.receive(messages)
	}()

	return b, nil
}

// Subscribe registers a handler for one event type on the local bus.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for every event type.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish delivers the event to local handlers and broadcasts it over
// Redis. A Redis failure is logged but does not fail the publish; local
// delivery is what progression correctness depends on.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(eventEnvelope{
		InstanceID:  b.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.channelName, string(data)); err != nil {
		b.logger.Error("failed to publish to redis", "error", err)
	}

	return b.localBus.Publish(event)
}

// receive drains the subscription channel until shutdown.
func (b *RedisEventBus) receive(messages <-chan RedisMessage) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.logger.Error("redis subscription error", "error", msg.Err)
				continue
			}
			b.deliverRemote(msg)
		}
	}
}

// deliverRemote replays a Redis message into the local bus, skipping
// events this instance published itself.
func (b *RedisEventBus) deliverRemote(msg RedisMessage) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Error("failed to unmarshal event", "error", err)
		return
	}

	if env.InstanceID == b.instanceID {
		return
	}

	remote := &remoteEvent{
		eventType:   env.EventType,
		aggregateID: env.AggregateID,
		occurredAt:  env.OccurredAt,
		payload:     env.Payload,
	}

	if err := b.localBus.Publish(remote); err != nil {
		b.logger.Error("failed to process remote event", "error", err)
	}
}

// Close stops the subscriber and shuts down the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.logger.Error("failed to close local bus", "error", err)
	}

	b.logger.Info("redis event bus closed")
	return nil
}

// Metrics reports the local bus counters.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.localBus.Metrics()
}

// eventEnvelope is the wire format for events crossing Redis.
type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// remoteEvent rehydrates an envelope as a shared.Event for local handlers.
type remoteEvent struct {
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.eventType }
func (e *remoteEvent) AggregateID() string             { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.occurredAt }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// GO-REDIS ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// GoRedisClient adapts a go-redis client to the RedisClient interface.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient wraps an existing go-redis client.
func NewGoRedisClient(client *redis.Client) *GoRedisClient {
	return &GoRedisClient{client: client}
}

// Publish sends a message to a channel.
func (c *GoRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.client.Publish(ctx, channel, message).Err()
}

// Subscribe listens on channels and forwards messages until ctx is done.
func (c *GoRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	sub := c.client.Subscribe(ctx, channels...)

	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("messaging: failed to subscribe: %w", err)
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying client.
func (c *GoRedisClient) Close() error {
	return c.client.Close()
}
