package query

import (
	"context"
	"fmt"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NEIGHBORS QUERY
// Returns the members ranked around one member (±N positions). Feeds rank
// cards that show who is just ahead and who is catching up.
// ══════════════════════════════════════════════════════════════════════════════

// GetNeighborsQuery contains the neighbors request parameters.
type GetNeighborsQuery struct {
	GuildID  shared.GuildID
	MemberID shared.MemberID

	// RangeSize is how many neighbors to include on each side. Defaults
	// to 5, capped at 25.
	RangeSize int
}

// Validate checks the query parameters.
func (q *GetNeighborsQuery) Validate() error {
	if !q.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !q.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	if q.RangeSize < 0 {
		return member.ErrInvalidLimit
	}
	if q.RangeSize == 0 {
		q.RangeSize = 5
	}
	if q.RangeSize > 25 {
		q.RangeSize = 25
	}
	return nil
}

// NeighborDTO is one member in a neighbors window.
type NeighborDTO struct {
	Rank       int    `json:"rank"`
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	Level      int    `json:"level"`
	TotalXP    int    `json:"total_xp"`

	// XPGap is the total XP distance to the requested member. Negative
	// for members below, positive for members above, zero for the
	// member themselves.
	XPGap int `json:"xp_gap"`

	// IsSelf marks the requested member's own row.
	IsSelf bool `json:"is_self"`
}

// GetNeighborsResult contains the neighbors window.
type GetNeighborsResult struct {
	Neighbors []NeighborDTO `json:"neighbors"`

	// Rank is the requested member's own 1-based rank.
	Rank int `json:"rank"`

	// OutOf is the guild's total record count.
	OutOf int `json:"out_of"`
}

// GetNeighborsHandler handles neighbors queries.
type GetNeighborsHandler struct {
	rank *GetRankHandler
}

// NewGetNeighborsHandler creates the neighbors query handler on top of the
// rank handler, so both share the same cached rank view.
func NewGetNeighborsHandler(rank *GetRankHandler) *GetNeighborsHandler {
	return &GetNeighborsHandler{rank: rank}
}

// Handle executes the neighbors query. A member without a record yields
// member.ErrRecordNotFound.
func (h *GetNeighborsHandler) Handle(ctx context.Context, query GetNeighborsQuery) (*GetNeighborsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("get_neighbors: %w", err)
	}

	records, err := h.rank.ranked(ctx, query.GuildID)
	if err != nil {
		return nil, fmt.Errorf("get_neighbors: %w", err)
	}

	self := -1
	for i, rec := range records {
		if rec.MemberID == query.MemberID {
			self = i
			break
		}
	}
	if self < 0 {
		return nil, fmt.Errorf("get_neighbors: %w", member.ErrRecordNotFound)
	}

	lo := self - query.RangeSize
	if lo < 0 {
		lo = 0
	}
	hi := self + query.RangeSize + 1
	if hi > len(records) {
		hi = len(records)
	}

	selfTotal := records[self].TotalXP
	neighbors := make([]NeighborDTO, 0, hi-lo)
	for i := lo; i < hi; i++ {
		rec := records[i]
		neighbors = append(neighbors, NeighborDTO{
			Rank:       i + 1,
			MemberID:   rec.MemberID.Int64(),
			MemberName: rec.Name,
			Level:      rec.Level,
			TotalXP:    rec.TotalXP,
			XPGap:      rec.TotalXP - selfTotal,
			IsSelf:     i == self,
		})
	}

	return &GetNeighborsResult{
		Neighbors: neighbors,
		Rank:      self + 1,
		OutOf:     len(records),
	}, nil
}
