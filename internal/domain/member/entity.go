// Package member contains the domain model for one user's progression record
// within one guild. This is the core of the business logic - there are no
// external dependencies here.
package member

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrRecordNotFound - no record exists for the (guild, member) pair.
	ErrRecordNotFound = errors.New("member: record not found")

	// ErrRecordAlreadyExists - a record already exists for the pair.
	ErrRecordAlreadyExists = errors.New("member: record already exists")

	// ErrInvalidGuildID - the guild ID is not positive.
	ErrInvalidGuildID = errors.New("member: invalid guild id: must be positive")

	// ErrInvalidMemberID - the member ID is not positive.
	ErrInvalidMemberID = errors.New("member: invalid member id: must be positive")

	// ErrInvalidName - the display name is empty or too long.
	ErrInvalidName = errors.New("member: invalid display name: must be 1-100 chars")

	// ErrInvalidSortKey - an unrecognized leaderboard sort key.
	ErrInvalidSortKey = errors.New("member: invalid sort key: must be one of name, level, xp, rank")

	// ErrInvalidLimit - a non-positive leaderboard limit.
	ErrInvalidLimit = errors.New("member: invalid limit: must be greater than zero")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record represents one user's progression within one guild.
//
// The level invariant always holds: Level is the largest L such that the
// curve threshold for L does not exceed TotalXP, and XP is the portion of
// TotalXP earned since the last level-up. Use ApplyTotalXP for every
// mutation so the invariant cannot drift.
type Record struct {
	// GuildID is the scope the record belongs to.
	GuildID shared.GuildID

	// MemberID is the platform user the record belongs to.
	MemberID shared.MemberID

	// Name is the denormalized display name, refreshed on demand.
	Name string

	// Level is the current level (0-100), derived from TotalXP.
	Level int

	// XP is the XP earned since the last level-up.
	XP int

	// TotalXP is the monotonically non-decreasing lifetime counter,
	// clamped at the level 100 threshold.
	TotalXP int

	// Seq is the insertion-order sequence assigned by the store. It breaks
	// ties in rank ordering: equal TotalXP ranks by who was recorded first.
	Seq int64

	// CreatedAt is when the record was first inserted.
	CreatedAt time.Time

	// UpdatedAt is when the record was last mutated.
	UpdatedAt time.Time
}

// Key returns the record's unique (guild, member) key.
func (r *Record) Key() shared.RecordKey {
	return shared.RecordKey{GuildID: r.GuildID, MemberID: r.MemberID}
}

// Mention returns the platform mention string for the record's member.
func (r *Record) Mention() string {
	return r.MemberID.Mention()
}

// NewRecord creates a zeroed record for a member, validating identifiers.
func NewRecord(guildID shared.GuildID, memberID shared.MemberID, name string) (*Record, error) {
	if !guildID.IsValid() {
		return nil, ErrInvalidGuildID
	}
	if !memberID.IsValid() {
		return nil, ErrInvalidMemberID
	}

	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > 100 {
		return nil, ErrInvalidName
	}

	now := time.Now().UTC()

	return &Record{
		GuildID:   guildID,
		MemberID:  memberID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyTotalXP assigns a new total XP value, clamping it into the valid
// domain and re-deriving Level and XP from the curve. Returns the level
// delta (new level minus old level).
func (r *Record) ApplyTotalXP(totalXP int) int {
	oldLevel := r.Level

	r.TotalXP = progression.ClampTotalXP(totalXP)
	r.Level = progression.LevelForXP(r.TotalXP)

	threshold, _ := progression.XPForLevel(r.Level)
	r.XP = r.TotalXP - threshold
	r.UpdatedAt = time.Now().UTC()

	return r.Level - oldLevel
}

// AddXP adds a (possibly negative) XP delta via ApplyTotalXP.
func (r *Record) AddXP(delta int) int {
	return r.ApplyTotalXP(r.TotalXP + delta)
}

// Reset zeroes the record's XP and level, keeping the row. Resetting an
// already-zeroed record is a no-op.
func (r *Record) Reset() {
	r.ApplyTotalXP(0)
}

// Rename updates the denormalized display name.
func (r *Record) Rename(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > 100 {
		return ErrInvalidName
	}
	r.Name = name
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// String returns a compact representation for logging.
func (r *Record) String() string {
	return fmt.Sprintf(
		"Record{Guild: %d, Member: %d, Name: %q, Level: %d, XP: %d, TotalXP: %d}",
		r.GuildID, r.MemberID, r.Name, r.Level, r.XP, r.TotalXP,
	)
}

// Clone creates a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// SORT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// SortKey selects the ordering of a leaderboard view.
type SortKey string

const (
	// SortByName orders alphabetically by display name.
	SortByName SortKey = "name"
	// SortByLevel orders by level, highest first.
	SortByLevel SortKey = "level"
	// SortByXP orders by current-level XP, highest first.
	SortByXP SortKey = "xp"
	// SortByRank orders by rank: total XP descending, ties broken by
	// insertion order. This is the default.
	SortByRank SortKey = "rank"
)

// IsValid reports whether the sort key is recognized.
func (s SortKey) IsValid() bool {
	switch s {
	case SortByName, SortByLevel, SortByXP, SortByRank:
		return true
	default:
		return false
	}
}
