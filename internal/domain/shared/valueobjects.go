package shared

import (
	"fmt"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// GuildID identifies one chat community. XP, levels, and ranks are tracked
// independently per guild. A zero GuildID means "no guild" (direct message
// context) and is never persisted.
type GuildID int64

// IsValid reports whether the GuildID refers to an actual guild.
func (g GuildID) IsValid() bool {
	return g > 0
}

// Int64 returns the raw identifier.
func (g GuildID) Int64() int64 {
	return int64(g)
}

// String returns the string representation of the guild ID.
func (g GuildID) String() string {
	return strconv.FormatInt(int64(g), 10)
}

// MemberID identifies one user on the chat platform.
type MemberID int64

// IsValid reports whether the MemberID is positive.
func (m MemberID) IsValid() bool {
	return m > 0
}

// Int64 returns the raw identifier.
func (m MemberID) Int64() int64 {
	return int64(m)
}

// String returns the string representation of the member ID.
func (m MemberID) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// Mention returns the platform mention string for the member.
func (m MemberID) Mention() string {
	return fmt.Sprintf("<@%d>", int64(m))
}

// RoleID identifies a role on the chat platform.
type RoleID int64

// IsValid reports whether the RoleID is positive.
func (r RoleID) IsValid() bool {
	return r > 0
}

// Int64 returns the raw identifier.
func (r RoleID) Int64() int64 {
	return int64(r)
}

// ChannelID identifies a text channel on the chat platform.
type ChannelID int64

// IsValid reports whether the ChannelID is positive.
func (c ChannelID) IsValid() bool {
	return c > 0
}

// Int64 returns the raw identifier.
func (c ChannelID) Int64() int64 {
	return int64(c)
}

// RecordKey uniquely identifies a member record: one user within one guild.
type RecordKey struct {
	GuildID  GuildID
	MemberID MemberID
}

// String returns a stable "guild:member" representation, used for keyed
// locking and cooldown bucketing.
func (k RecordKey) String() string {
	return k.GuildID.String() + ":" + k.MemberID.String()
}
