package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progression events
	EventXPAwarded EventType = "progression.xp_awarded"
	EventXPRemoved EventType = "progression.xp_removed"
	EventLevelUp   EventType = "progression.level_up"
	EventLevelSet  EventType = "progression.level_set"

	// Record events
	EventRecordCreated EventType = "record.created"
	EventRecordReset   EventType = "record.reset"
	EventRecordRemoved EventType = "record.removed"
	EventGuildWiped    EventType = "record.guild_wiped"

	// Award events
	EventRoleAwarded EventType = "award.role_awarded"
	EventRoleRevoked EventType = "award.role_revoked"

	// System events
	EventImportCompleted EventType = "system.import_completed"
	EventExportCompleted EventType = "system.export_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted every time a member gains XP from activity.
type XPAwardedEvent struct {
	BaseEvent
	GuildID    int64 `json:"guild_id"`
	MemberID   int64 `json:"member_id"`
	Amount     int   `json:"amount"`
	NewTotalXP int   `json:"new_total_xp"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":     e.GuildID,
		"member_id":    e.MemberID,
		"amount":       e.Amount,
		"new_total_xp": e.NewTotalXP,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(aggregateID string, guildID, memberID int64, amount, newTotalXP int) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:  NewBaseEvent(EventXPAwarded, aggregateID),
		GuildID:    guildID,
		MemberID:   memberID,
		Amount:     amount,
		NewTotalXP: newTotalXP,
	}
}

// XPRemovedEvent is emitted when XP is taken away from a member.
type XPRemovedEvent struct {
	BaseEvent
	GuildID    int64 `json:"guild_id"`
	MemberID   int64 `json:"member_id"`
	Amount     int   `json:"amount"`
	NewTotalXP int   `json:"new_total_xp"`
}

// Payload implements Event interface.
func (e XPRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":     e.GuildID,
		"member_id":    e.MemberID,
		"amount":       e.Amount,
		"new_total_xp": e.NewTotalXP,
	}
}

// NewXPRemovedEvent creates a new XPRemovedEvent.
func NewXPRemovedEvent(aggregateID string, guildID, memberID int64, amount, newTotalXP int) XPRemovedEvent {
	return XPRemovedEvent{
		BaseEvent:  NewBaseEvent(EventXPRemoved, aggregateID),
		GuildID:    guildID,
		MemberID:   memberID,
		Amount:     amount,
		NewTotalXP: newTotalXP,
	}
}

// LevelUpEvent is emitted when a member crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	GuildID    int64  `json:"guild_id"`
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	OldLevel   int    `json:"old_level"`
	NewLevel   int    `json:"new_level"`
	TotalXP    int    `json:"total_xp"`
	Rank       int    `json:"rank,omitempty"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":    e.GuildID,
		"member_id":   e.MemberID,
		"member_name": e.MemberName,
		"old_level":   e.OldLevel,
		"new_level":   e.NewLevel,
		"total_xp":    e.TotalXP,
		"rank":        e.Rank,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(aggregateID string, guildID, memberID int64, name string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:  NewBaseEvent(EventLevelUp, aggregateID),
		GuildID:    guildID,
		MemberID:   memberID,
		MemberName: name,
		OldLevel:   oldLevel,
		NewLevel:   newLevel,
		TotalXP:    totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Record Events
// ═══════════════════════════════════════════════════════════════════════════

// RecordCreatedEvent is emitted when a member record is first inserted.
type RecordCreatedEvent struct {
	BaseEvent
	GuildID    int64  `json:"guild_id"`
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
}

// Payload implements Event interface.
func (e RecordCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":    e.GuildID,
		"member_id":   e.MemberID,
		"member_name": e.MemberName,
	}
}

// NewRecordCreatedEvent creates a new RecordCreatedEvent.
func NewRecordCreatedEvent(aggregateID string, guildID, memberID int64, name string) RecordCreatedEvent {
	return RecordCreatedEvent{
		BaseEvent:  NewBaseEvent(EventRecordCreated, aggregateID),
		GuildID:    guildID,
		MemberID:   memberID,
		MemberName: name,
	}
}

// RecordResetEvent is emitted when a member record is reset to zero.
type RecordResetEvent struct {
	BaseEvent
	GuildID  int64 `json:"guild_id"`
	MemberID int64 `json:"member_id"`
}

// Payload implements Event interface.
func (e RecordResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":  e.GuildID,
		"member_id": e.MemberID,
	}
}

// NewRecordResetEvent creates a new RecordResetEvent.
func NewRecordResetEvent(aggregateID string, guildID, memberID int64) RecordResetEvent {
	return RecordResetEvent{
		BaseEvent: NewBaseEvent(EventRecordReset, aggregateID),
		GuildID:   guildID,
		MemberID:  memberID,
	}
}

// GuildWipedEvent is emitted when all records for a guild are deleted.
type GuildWipedEvent struct {
	BaseEvent
	GuildID int64 `json:"guild_id"`
	Removed int64 `json:"removed"`
}

// Payload implements Event interface.
func (e GuildWipedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id": e.GuildID,
		"removed":  e.Removed,
	}
}

// NewGuildWipedEvent creates a new GuildWipedEvent.
func NewGuildWipedEvent(aggregateID string, guildID, removed int64) GuildWipedEvent {
	return GuildWipedEvent{
		BaseEvent: NewBaseEvent(EventGuildWiped, aggregateID),
		GuildID:   guildID,
		Removed:   removed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Award Events
// ═══════════════════════════════════════════════════════════════════════════

// RoleAwardedEvent is emitted when an award role is granted to a member.
type RoleAwardedEvent struct {
	BaseEvent
	GuildID  int64 `json:"guild_id"`
	MemberID int64 `json:"member_id"`
	RoleID   int64 `json:"role_id"`
	Level    int   `json:"level"`
}

// Payload implements Event interface.
func (e RoleAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":  e.GuildID,
		"member_id": e.MemberID,
		"role_id":   e.RoleID,
		"level":     e.Level,
	}
}

// NewRoleAwardedEvent creates a new RoleAwardedEvent.
func NewRoleAwardedEvent(aggregateID string, guildID, memberID, roleID int64, level int) RoleAwardedEvent {
	return RoleAwardedEvent{
		BaseEvent: NewBaseEvent(EventRoleAwarded, aggregateID),
		GuildID:   guildID,
		MemberID:  memberID,
		RoleID:    roleID,
		Level:     level,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// ImportCompletedEvent is emitted after a bulk import run.
type ImportCompletedEvent struct {
	BaseEvent
	GuildID  int64 `json:"guild_id"`
	Inserted int   `json:"inserted"`
	Updated  int   `json:"updated"`
	Skipped  int   `json:"skipped"`
}

// Payload implements Event interface.
func (e ImportCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id": e.GuildID,
		"inserted": e.Inserted,
		"updated":  e.Updated,
		"skipped":  e.Skipped,
	}
}

// NewImportCompletedEvent creates a new ImportCompletedEvent.
func NewImportCompletedEvent(aggregateID string, guildID int64, inserted, updated, skipped int) ImportCompletedEvent {
	return ImportCompletedEvent{
		BaseEvent: NewBaseEvent(EventImportCompleted, aggregateID),
		GuildID:   guildID,
		Inserted:  inserted,
		Updated:   updated,
		Skipped:   skipped,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
