// Package award contains the role-award configuration: roles granted
// automatically when a member's level crosses a configured threshold.
package award

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrDuplicateRoleID - the same role appears twice within one guild.
	ErrDuplicateRoleID = errors.New("award: duplicate role ID: all role IDs must be unique")

	// ErrDuplicateLevel - two awards in one guild share a level requirement.
	ErrDuplicateLevel = errors.New("award: duplicate level requirement: all level requirements must be unique")

	// ErrUnorderedLevels - level requirements are not in ascending order.
	ErrUnorderedLevels = errors.New("award: level requirements must be in ascending order")

	// ErrInvalidLevelRequirement - a level requirement outside (0, 100].
	ErrInvalidLevelRequirement = errors.New("award: level requirement must be between 1 and 100")

	// ErrInvalidRoleID - a non-positive role ID.
	ErrInvalidRoleID = errors.New("award: invalid role ID: must be positive")
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLE AWARD
// ══════════════════════════════════════════════════════════════════════════════

// RoleAward associates a role with the level required to earn it.
type RoleAward struct {
	// RoleID is the role granted when the requirement is met.
	RoleID shared.RoleID

	// LevelRequirement is the level a member must reach to be awarded
	// the role.
	LevelRequirement int
}

// String returns a compact representation for logging.
func (a RoleAward) String() string {
	return fmt.Sprintf("RoleAward{Role: %d, Level: %d}", a.RoleID, a.LevelRequirement)
}

// Set is the validated, per-guild role-award configuration. Created once at
// construction time and read-only afterwards.
type Set struct {
	byGuild map[shared.GuildID][]RoleAward
}

// NewSet validates awards per guild: positive unique role IDs, unique level
// requirements in (0, 100], and ascending level-requirement order.
func NewSet(awards map[shared.GuildID][]RoleAward) (*Set, error) {
	byGuild := make(map[shared.GuildID][]RoleAward, len(awards))

	for guildID, list := range awards {
		if err := validateGuildAwards(list); err != nil {
			return nil, fmt.Errorf("guild %d: %w", guildID, err)
		}
		copied := make([]RoleAward, len(list))
		copy(copied, list)
		byGuild[guildID] = copied
	}

	return &Set{byGuild: byGuild}, nil
}

// EmptySet returns a set with no awards configured.
func EmptySet() *Set {
	return &Set{byGuild: map[shared.GuildID][]RoleAward{}}
}

func validateGuildAwards(list []RoleAward) error {
	seenRoles := make(map[shared.RoleID]bool, len(list))
	seenLevels := make(map[int]bool, len(list))

	prev := 0
	for _, a := range list {
		if !a.RoleID.IsValid() {
			return ErrInvalidRoleID
		}
		if a.LevelRequirement <= 0 || a.LevelRequirement > progression.MaxLevel {
			return fmt.Errorf("%w: got %d", ErrInvalidLevelRequirement, a.LevelRequirement)
		}
		if seenRoles[a.RoleID] {
			return fmt.Errorf("%w: role %d", ErrDuplicateRoleID, a.RoleID)
		}
		if seenLevels[a.LevelRequirement] {
			return fmt.Errorf("%w: level %d", ErrDuplicateLevel, a.LevelRequirement)
		}
		if a.LevelRequirement < prev {
			return ErrUnorderedLevels
		}

		seenRoles[a.RoleID] = true
		seenLevels[a.LevelRequirement] = true
		prev = a.LevelRequirement
	}

	return nil
}

// ForGuild returns the awards configured for one guild, in ascending
// level-requirement order. Returns nil when none are configured.
func (s *Set) ForGuild(guildID shared.GuildID) []RoleAward {
	return s.byGuild[guildID]
}

// All returns the full per-guild configuration.
func (s *Set) All() map[shared.GuildID][]RoleAward {
	return s.byGuild
}

// Earned returns the guild's awards whose level requirement falls in
// (oldLevel, newLevel], i.e. everything newly earned by that level change.
func (s *Set) Earned(guildID shared.GuildID, oldLevel, newLevel int) []RoleAward {
	var earned []RoleAward
	for _, a := range s.byGuild[guildID] {
		if a.LevelRequirement > oldLevel && a.LevelRequirement <= newLevel {
			earned = append(earned, a)
		}
	}
	return earned
}

// HighestFor returns the highest award a member at the given level has
// earned, or false if none apply. Used by the non-stacking policy to decide
// the single role a member should hold.
func (s *Set) HighestFor(guildID shared.GuildID, level int) (RoleAward, bool) {
	list := s.byGuild[guildID]
	// Awards are ascending; find the last one at or below level.
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].LevelRequirement > level
	})
	if idx == 0 {
		return RoleAward{}, false
	}
	return list[idx-1], true
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLE MANAGER PORT
// ══════════════════════════════════════════════════════════════════════════════

// RoleManager is the chat-platform capability for granting and revoking
// roles. The engine treats it as opaque; it never inspects transport details.
type RoleManager interface {
	// GrantRole adds a role to a member.
	GrantRole(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, roleID shared.RoleID) error

	// RevokeRole removes a role from a member.
	RevokeRole(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, roleID shared.RoleID) error
}
