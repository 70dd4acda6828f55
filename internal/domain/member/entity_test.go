package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

func TestNewRecord_Valid(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(10), shared.MemberID(20), "alice")
	require.NoError(t, err)

	assert.Equal(t, shared.GuildID(10), rec.GuildID)
	assert.Equal(t, shared.MemberID(20), rec.MemberID)
	assert.Equal(t, "alice", rec.Name)
	assert.Equal(t, 0, rec.Level)
	assert.Equal(t, 0, rec.XP)
	assert.Equal(t, 0, rec.TotalXP)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestNewRecord_TrimsName(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "  bob  ")
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.Name)
}

func TestNewRecord_InvalidInputs(t *testing.T) {
	_, err := NewRecord(shared.GuildID(0), shared.MemberID(2), "bob")
	assert.ErrorIs(t, err, ErrInvalidGuildID)

	_, err = NewRecord(shared.GuildID(1), shared.MemberID(-1), "bob")
	assert.ErrorIs(t, err, ErrInvalidMemberID)

	_, err = NewRecord(shared.GuildID(1), shared.MemberID(2), "   ")
	assert.ErrorIs(t, err, ErrInvalidName)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewRecord(shared.GuildID(1), shared.MemberID(2), string(long))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRecord_ApplyTotalXP_DerivesLevelAndXP(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "alice")
	require.NoError(t, err)

	delta := rec.ApplyTotalXP(255)
	assert.Equal(t, 2, delta)
	assert.Equal(t, 2, rec.Level)
	assert.Equal(t, 255, rec.TotalXP)
	assert.Equal(t, 0, rec.XP)

	delta = rec.ApplyTotalXP(300)
	assert.Equal(t, 0, delta)
	assert.Equal(t, 2, rec.Level)
	assert.Equal(t, 45, rec.XP)
}

func TestRecord_ApplyTotalXP_ClampsDomain(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "alice")
	require.NoError(t, err)

	rec.ApplyTotalXP(-500)
	assert.Equal(t, 0, rec.TotalXP)
	assert.Equal(t, 0, rec.Level)

	rec.ApplyTotalXP(progression.MaxXP + 1_000_000)
	assert.Equal(t, progression.MaxXP, rec.TotalXP)
	assert.Equal(t, progression.MaxLevel, rec.Level)
	assert.Equal(t, 0, rec.XP)
}

func TestRecord_AddXP_ReturnsLevelDelta(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "alice")
	require.NoError(t, err)

	assert.Equal(t, 0, rec.AddXP(50))
	assert.Equal(t, 50, rec.TotalXP)

	assert.Equal(t, 1, rec.AddXP(60))
	assert.Equal(t, 1, rec.Level)
	assert.Equal(t, 10, rec.XP)

	assert.Equal(t, -1, rec.AddXP(-60))
	assert.Equal(t, 0, rec.Level)
	assert.Equal(t, 50, rec.TotalXP)
}

func TestRecord_Reset(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "alice")
	require.NoError(t, err)
	rec.ApplyTotalXP(4675)

	rec.Reset()
	assert.Equal(t, 0, rec.Level)
	assert.Equal(t, 0, rec.XP)
	assert.Equal(t, 0, rec.TotalXP)
	assert.Equal(t, "alice", rec.Name)
}

func TestRecord_Rename(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "alice")
	require.NoError(t, err)

	require.NoError(t, rec.Rename("  carol "))
	assert.Equal(t, "carol", rec.Name)

	assert.ErrorIs(t, rec.Rename(""), ErrInvalidName)
	assert.Equal(t, "carol", rec.Name)
}

func TestRecord_Clone(t *testing.T) {
	rec, err := NewRecord(shared.GuildID(1), shared.MemberID(2), "alice")
	require.NoError(t, err)
	rec.ApplyTotalXP(300)

	clone := rec.Clone()
	clone.ApplyTotalXP(1000)
	assert.Equal(t, 300, rec.TotalXP)

	var nilRec *Record
	assert.Nil(t, nilRec.Clone())
}

func TestSortKey_IsValid(t *testing.T) {
	assert.True(t, SortByRank.IsValid())
	assert.True(t, SortByName.IsValid())
	assert.True(t, SortByLevel.IsValid())
	assert.True(t, SortByXP.IsValid())
	assert.False(t, SortKey("mmr").IsValid())
}
