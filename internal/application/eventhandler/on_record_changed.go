// Package eventhandler contains the reactive side of the system: handlers
// that subscribe to domain events and run side effects such as cache
// invalidation and audit logging. Handlers are registered on the messaging
// dispatcher at startup and run after the originating command has already
// committed its write.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RECORD CHANGED HANDLER
// Any event that mutates a member record makes the cached leaderboard views
// for that guild stale. This handler drops them so the next read rebuilds
// from the repository.
// ═══════════════════════════════════════════════════════════════════════════

// RecordChangedEvents lists every event type that invalidates guild views.
var RecordChangedEvents = []shared.EventType{
	shared.EventXPAwarded,
	shared.EventXPRemoved,
	shared.EventLevelUp,
	shared.EventLevelSet,
	shared.EventRecordCreated,
	shared.EventRecordReset,
	shared.EventRecordRemoved,
	shared.EventGuildWiped,
	shared.EventImportCompleted,
}

// OnRecordChangedHandler invalidates cached leaderboard views when a member
// record changes.
type OnRecordChangedHandler struct {
	views   member.ViewCache
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnRecordChangedHandler creates the view invalidation handler.
func NewOnRecordChangedHandler(views member.ViewCache, logger *slog.Logger) *OnRecordChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnRecordChangedHandler{
		views:   views,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnRecordChangedHandler) Handle(event shared.Event) error {
	guildID, ok := guildIDFrom(event)
	if !ok {
		h.logger.Warn("event without guild_id, skipping view invalidation",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.views.InvalidateGuild(ctx, guildID); err != nil {
		h.logger.Warn("failed to invalidate guild views",
			"guild_id", guildID.Int64(),
			"event_type", event.EventType(),
			"error", err,
		)
		return err
	}

	h.logger.Debug("guild views invalidated",
		"guild_id", guildID.Int64(),
		"event_type", event.EventType(),
	)
	return nil
}

// guildIDFrom extracts the guild ID from an event payload. Events that
// arrived over the wire carry JSON-decoded payloads, so the value may be a
// float64 rather than an int64.
func guildIDFrom(event shared.Event) (shared.GuildID, bool) {
	id, ok := asInt64(event.Payload()["guild_id"])
	if !ok {
		return 0, false
	}
	return shared.GuildID(id), true
}
