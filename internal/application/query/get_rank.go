package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANK QUERY
// Resolves one member's 1-based position in their guild. Ordering is by
// total XP descending; members with equal totals keep their insertion
// order, so an overtaken rank only changes when the total actually differs.
// ══════════════════════════════════════════════════════════════════════════════

// GetRankQuery contains the rank request parameters.
type GetRankQuery struct {
	GuildID  shared.GuildID
	MemberID shared.MemberID
}

// Validate checks the query parameters.
func (q GetRankQuery) Validate() error {
	if !q.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !q.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	return nil
}

// GetRankResult contains the resolved rank.
type GetRankResult struct {
	// Rank is the member's 1-based position.
	Rank int `json:"rank"`

	// OutOf is the guild's total record count.
	OutOf int `json:"out_of"`

	Record *member.Record `json:"record"`
}

// GetRankHandler handles rank queries.
type GetRankHandler struct {
	repo  member.Repository
	cache member.ViewCache
	log   *logger.Logger
}

// NewGetRankHandler creates the rank query handler. The cache may be nil.
func NewGetRankHandler(repo member.Repository, cache member.ViewCache, log *logger.Logger) *GetRankHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetRankHandler{
		repo:  repo,
		cache: cache,
		log:   log.With(logger.Component("get_rank")),
	}
}

// Handle executes the rank query. A member without a record yields
// member.ErrRecordNotFound.
func (h *GetRankHandler) Handle(ctx context.Context, query GetRankQuery) (*GetRankResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_rank: %w", err)
	}

	records, err := h.ranked(ctx, query.GuildID)
	if err != nil {
		return nil, fmt.Errorf("get_rank: %w", err)
	}

	for i, rec := range records {
		if rec.MemberID == query.MemberID {
			return &GetRankResult{
				Rank:   i + 1,
				OutOf:  len(records),
				Record: rec,
			}, nil
		}
	}

	return nil, fmt.Errorf("get_rank: %w", member.ErrRecordNotFound)
}

// ranked returns the guild's rank-ordered records, preferring the cache.
func (h *GetRankHandler) ranked(ctx context.Context, guildID shared.GuildID) ([]*member.Record, error) {
	if h.cache != nil {
		cached, err := h.cache.GetView(ctx, guildID, member.SortByRank)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, member.ErrRecordNotFound) {
			h.log.Warn("rank cache read failed", logger.Err(err))
		}
	}

	return h.repo.ListByGuild(ctx, guildID, member.ListOptions{SortKey: member.SortByRank})
}
