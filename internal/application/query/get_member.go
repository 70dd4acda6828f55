package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MEMBER QUERIES
// Single-record lookups: one member's stored progression data plus the
// derived next-level figures, and a couple of existence and count helpers.
// ══════════════════════════════════════════════════════════════════════════════

// GetMemberQuery contains the member lookup parameters.
type GetMemberQuery struct {
	GuildID  shared.GuildID
	MemberID shared.MemberID
}

// Validate checks the query parameters.
func (q GetMemberQuery) Validate() error {
	if !q.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !q.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	return nil
}

// GetMemberResult contains one member's progression data.
type GetMemberResult struct {
	Record *member.Record `json:"record"`

	// NextLevel is the level after the member's current one, capped at
	// the top of the curve.
	NextLevel int `json:"next_level"`

	// XPToNextLevel is how much more total XP the member needs to reach
	// NextLevel. Zero at the top of the curve.
	XPToNextLevel int `json:"xp_to_next_level"`

	// AtMaxLevel marks members who finished the curve.
	AtMaxLevel bool `json:"at_max_level"`
}

// GetMemberHandler handles single-member queries.
type GetMemberHandler struct {
	repo member.Repository
}

// NewGetMemberHandler creates the member query handler.
func NewGetMemberHandler(repo member.Repository) *GetMemberHandler {
	return &GetMemberHandler{repo: repo}
}

// Handle executes the member lookup. A member without a record yields
// member.ErrRecordNotFound.
func (h *GetMemberHandler) Handle(ctx context.Context, query GetMemberQuery) (*GetMemberResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_member: %w", err)
	}

	rec, err := h.repo.Get(ctx, shared.RecordKey{GuildID: query.GuildID, MemberID: query.MemberID})
	if err != nil {
		return nil, fmt.Errorf("get_member: %w", err)
	}

	result := &GetMemberResult{
		Record:     rec,
		NextLevel:  rec.Level,
		AtMaxLevel: rec.Level >= progression.MaxLevel,
	}
	if !result.AtMaxLevel {
		result.NextLevel = rec.Level + 1
		result.XPToNextLevel = progression.XPToNextLevel(rec.TotalXP)
	}

	return result, nil
}

// IsInDatabase reports whether the member has a record in the guild.
func (h *GetMemberHandler) IsInDatabase(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID) (bool, error) {
	_, err := h.repo.Get(ctx, shared.RecordKey{GuildID: guildID, MemberID: memberID})
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get_member: %w", err)
	}
	return true, nil
}

// RecordCount returns the number of records in one guild, or across all
// guilds when guildID is nil.
func (h *GetMemberHandler) RecordCount(ctx context.Context, guildID *shared.GuildID) (int64, error) {
	count, err := h.repo.Count(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("get_member: %w", err)
	}
	return count, nil
}
