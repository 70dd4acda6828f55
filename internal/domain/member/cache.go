package member

import (
	"context"
	"time"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ViewCache caches rendered leaderboard views per guild and sort key. The
// cached value is the full ordered record list, so rank ties keep their
// insertion-order position without re-sorting on read.
type ViewCache interface {
	// GetView returns the cached ordered records for a guild and sort
	// key, or ErrRecordNotFound on a cache miss.
	GetView(ctx context.Context, guildID shared.GuildID, sortKey SortKey) ([]*Record, error)

	// SetView stores an ordered record list under a guild and sort key.
	SetView(ctx context.Context, guildID shared.GuildID, sortKey SortKey, records []*Record, ttl time.Duration) error

	// InvalidateGuild drops every cached view of a guild. Called after
	// any mutation touching the guild's records.
	InvalidateGuild(ctx context.Context, guildID shared.GuildID) error
}
