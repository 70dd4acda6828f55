package eventhandler

import (
	"log/slog"
	"sync"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Audit trail for progression milestones. The worker process subscribes to
// the shared event channel and records every level-up it sees, keeping a
// running per-guild tally that the stats job reports on.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler logs level-up events and keeps per-guild counters.
type OnLevelUpHandler struct {
	logger *slog.Logger

	mu     sync.Mutex
	counts map[int64]int
}

// NewOnLevelUpHandler creates the level-up audit handler.
func NewOnLevelUpHandler(logger *slog.Logger) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLevelUpHandler{
		logger: logger,
		counts: make(map[int64]int),
	}
}

// Handle implements shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	payload := event.Payload()

	guildID, _ := asInt64(payload["guild_id"])
	memberID, _ := asInt64(payload["member_id"])
	newLevel, _ := asInt64(payload["new_level"])
	oldLevel, _ := asInt64(payload["old_level"])

	h.mu.Lock()
	h.counts[guildID]++
	total := h.counts[guildID]
	h.mu.Unlock()

	h.logger.Info("member leveled up",
		"guild_id", guildID,
		"member_id", memberID,
		"old_level", oldLevel,
		"new_level", newLevel,
		"guild_level_ups", total,
	)
	return nil
}

// Counts returns a snapshot of per-guild level-up tallies since startup.
func (h *OnLevelUpHandler) Counts() map[int64]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := make(map[int64]int, len(h.counts))
	for k, v := range h.counts {
		snapshot[k] = v
	}
	return snapshot
}

// Reset clears the tallies, typically after the stats job has reported them.
func (h *OnLevelUpHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make(map[int64]int)
}

func asInt64(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
