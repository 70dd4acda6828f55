// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns a guild's records in a chosen order. Reads go through the view
// cache when one is wired; a cache miss or cache outage falls back to the
// repository, so the leaderboard stays available without the cache.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultViewTTL is how long a rebuilt leaderboard view stays cached.
const DefaultViewTTL = 5 * time.Minute

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	GuildID shared.GuildID

	// SortKey selects the ordering; empty means rank order.
	SortKey member.SortKey

	// Limit caps the number of returned entries. Zero means no cap.
	Limit int
}

// Validate checks the query parameters.
func (q *GetLeaderboardQuery) Validate() error {
	if !q.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if q.SortKey == "" {
		q.SortKey = member.SortByRank
	}
	if !q.SortKey.IsValid() {
		return member.ErrInvalidSortKey
	}
	if q.Limit < 0 {
		return member.ErrInvalidLimit
	}
	return nil
}

// LeaderboardEntryDTO is one row of a rendered leaderboard.
type LeaderboardEntryDTO struct {
	// Rank is the 1-based position in the guild's rank order. It is the
	// rank regardless of the requested sort key.
	Rank int `json:"rank"`

	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	Level      int    `json:"level"`
	XP         int    `json:"xp"`
	TotalXP    int    `json:"total_xp"`
}

// GetLeaderboardResult contains the rendered leaderboard.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount is the guild's full record count, before the limit.
	TotalCount int `json:"total_count"`

	// FromCache marks results served from the view cache.
	FromCache bool `json:"from_cache"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	repo  member.Repository
	cache member.ViewCache
	log   *logger.Logger
	ttl   time.Duration
}

// NewGetLeaderboardHandler creates the leaderboard query handler. The cache
// may be nil; reads then always hit the repository.
func NewGetLeaderboardHandler(repo member.Repository, cache member.ViewCache, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetLeaderboardHandler{
		repo:  repo,
		cache: cache,
		log:   log.With(logger.Component("get_leaderboard")),
		ttl:   DefaultViewTTL,
	}
}

// Handle executes the leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	records, fromCache, err := h.load(ctx, query.GuildID, query.SortKey)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	total := len(records)
	limited := records
	if query.Limit > 0 && query.Limit < len(limited) {
		limited = limited[:query.Limit]
	}

	ranks, err := h.rankIndex(ctx, query.GuildID, query.SortKey)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntryDTO, 0, len(limited))
	for i, rec := range limited {
		rank := i + 1
		if ranks != nil {
			rank = ranks[rec.MemberID]
		}
		entries = append(entries, LeaderboardEntryDTO{
			Rank:       rank,
			MemberID:   rec.MemberID.Int64(),
			MemberName: rec.Name,
			Level:      rec.Level,
			XP:         rec.XP,
			TotalXP:    rec.TotalXP,
		})
	}

	return &GetLeaderboardResult{
		Entries:     entries,
		TotalCount:  total,
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// load returns the guild's ordered records, preferring the view cache.
// Cache errors are logged and treated as misses.
func (h *GetLeaderboardHandler) load(ctx context.Context, guildID shared.GuildID, sortKey member.SortKey) ([]*member.Record, bool, error) {
	if h.cache != nil {
		cached, err := h.cache.GetView(ctx, guildID, sortKey)
		if err == nil {
			return cached, true, nil
		}
		if !errors.Is(err, member.ErrRecordNotFound) {
			h.log.Warn("leaderboard cache read failed", logger.Err(err))
		}
	}

	records, err := h.repo.ListByGuild(ctx, guildID, member.ListOptions{SortKey: sortKey})
	if err != nil {
		return nil, false, err
	}

	if h.cache != nil {
		if err := h.cache.SetView(ctx, guildID, sortKey, records, h.ttl); err != nil {
			h.log.Warn("leaderboard cache write failed", logger.Err(err))
		}
	}

	return records, false, nil
}

// rankIndex maps member IDs to their rank-order position. For rank-sorted
// results the position is the index, so no extra read is needed; other sort
// orders require the rank-ordered list to resolve true ranks.
func (h *GetLeaderboardHandler) rankIndex(ctx context.Context, guildID shared.GuildID, sortKey member.SortKey) (map[shared.MemberID]int, error) {
	if sortKey == member.SortByRank {
		return nil, nil
	}

	ranked, _, err := h.load(ctx, guildID, member.SortByRank)
	if err != nil {
		return nil, err
	}

	index := make(map[shared.MemberID]int, len(ranked))
	for i, rec := range ranked {
		index[rec.MemberID] = i + 1
	}
	return index, nil
}
