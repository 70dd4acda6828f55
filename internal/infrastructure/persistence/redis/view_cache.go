package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/circuitbreaker"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW CACHE
// Implements member.ViewCache. Each cached entry is the full ordered record
// list for one guild and sort key, serialized as JSON. Storing the ordered
// list rather than a sorted set keeps the insertion-order tie-break that
// the database rank order guarantees.
// ══════════════════════════════════════════════════════════════════════════════

// cachedRecord is the wire form of one record in a cached view.
type cachedRecord struct {
	GuildID   int64     `json:"g"`
	MemberID  int64     `json:"m"`
	Name      string    `json:"n"`
	Level     int       `json:"l"`
	XP        int       `json:"x"`
	TotalXP   int       `json:"t"`
	Seq       int64     `json:"s"`
	CreatedAt time.Time `json:"ca"`
	UpdatedAt time.Time `json:"ua"`
}

// ViewCache implements member.ViewCache on Redis, guarded by a circuit
// breaker so a Redis outage degrades reads to the database instead of
// failing them.
type ViewCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewViewCache creates a leaderboard view cache.
func NewViewCache(cache *Cache, log *logger.Logger) *ViewCache {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("view_cache"))

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("cache breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return &ViewCache{
		cache:   cache,
		breaker: breaker,
		log:     log,
	}
}

// GetView returns the cached ordered records for a guild and sort key.
// A cache miss and an open breaker both surface as ErrRecordNotFound, so
// callers treat them uniformly as "not cached".
func (v *ViewCache) GetView(ctx context.Context, guildID shared.GuildID, sortKey member.SortKey) ([]*member.Record, error) {
	var cached []cachedRecord

	err := v.breaker.Execute(ctx, func(ctx context.Context) error {
		return v.cache.Get(ctx, viewKey(guildID, sortKey), &cached)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) || errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, member.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read cached view: %w", err)
	}

	records := make([]*member.Record, len(cached))
	for i, c := range cached {
		records[i] = &member.Record{
			GuildID:   shared.GuildID(c.GuildID),
			MemberID:  shared.MemberID(c.MemberID),
			Name:      c.Name,
			Level:     c.Level,
			XP:        c.XP,
			TotalXP:   c.TotalXP,
			Seq:       c.Seq,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}

	return records, nil
}

// SetView stores an ordered record list under a guild and sort key.
func (v *ViewCache) SetView(ctx context.Context, guildID shared.GuildID, sortKey member.SortKey, records []*member.Record, ttl time.Duration) error {
	cached := make([]cachedRecord, len(records))
	for i, rec := range records {
		cached[i] = cachedRecord{
			GuildID:   rec.GuildID.Int64(),
			MemberID:  rec.MemberID.Int64(),
			Name:      rec.Name,
			Level:     rec.Level,
			XP:        rec.XP,
			TotalXP:   rec.TotalXP,
			Seq:       rec.Seq,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
	}

	err := v.breaker.Execute(ctx, func(ctx context.Context) error {
		return v.cache.Set(ctx, viewKey(guildID, sortKey), cached, ttl)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil
		}
		return fmt.Errorf("failed to cache view: %w", err)
	}

	return nil
}

// InvalidateGuild drops every cached view of a guild.
func (v *ViewCache) InvalidateGuild(ctx context.Context, guildID shared.GuildID) error {
	err := v.breaker.Execute(ctx, func(ctx context.Context) error {
		return v.cache.DeleteByPattern(ctx, fmt.Sprintf("%s%d:*", PrefixView, guildID.Int64()))
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil
		}
		return fmt.Errorf("failed to invalidate guild views: %w", err)
	}

	return nil
}

// viewKey builds the cache key for one guild and sort key.
func viewKey(guildID shared.GuildID, sortKey member.SortKey) string {
	return fmt.Sprintf("%s%d:%s", PrefixView, guildID.Int64(), sortKey)
}
