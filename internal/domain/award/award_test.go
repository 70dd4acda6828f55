package award

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet(map[shared.GuildID][]RoleAward{
		1: {
			{RoleID: 100, LevelRequirement: 5},
			{RoleID: 200, LevelRequirement: 10},
			{RoleID: 300, LevelRequirement: 20},
		},
	})
	require.NoError(t, err)
	return set
}

func TestNewSet_ValidatesPerGuild(t *testing.T) {
	_, err := NewSet(map[shared.GuildID][]RoleAward{
		1: {{RoleID: 0, LevelRequirement: 5}},
	})
	assert.ErrorIs(t, err, ErrInvalidRoleID)

	_, err = NewSet(map[shared.GuildID][]RoleAward{
		1: {{RoleID: 100, LevelRequirement: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidLevelRequirement)

	_, err = NewSet(map[shared.GuildID][]RoleAward{
		1: {{RoleID: 100, LevelRequirement: 101}},
	})
	assert.ErrorIs(t, err, ErrInvalidLevelRequirement)

	_, err = NewSet(map[shared.GuildID][]RoleAward{
		1: {
			{RoleID: 100, LevelRequirement: 5},
			{RoleID: 100, LevelRequirement: 10},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateRoleID)

	_, err = NewSet(map[shared.GuildID][]RoleAward{
		1: {
			{RoleID: 100, LevelRequirement: 5},
			{RoleID: 200, LevelRequirement: 5},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateLevel)

	_, err = NewSet(map[shared.GuildID][]RoleAward{
		1: {
			{RoleID: 100, LevelRequirement: 10},
			{RoleID: 200, LevelRequirement: 5},
		},
	})
	assert.ErrorIs(t, err, ErrUnorderedLevels)
}

func TestSet_Earned_HalfOpenInterval(t *testing.T) {
	set := testSet(t)

	earned := set.Earned(1, 4, 10)
	require.Len(t, earned, 2)
	assert.Equal(t, shared.RoleID(100), earned[0].RoleID)
	assert.Equal(t, shared.RoleID(200), earned[1].RoleID)

	// Requirement equal to the old level is already held.
	assert.Empty(t, set.Earned(1, 5, 5))
	assert.Empty(t, set.Earned(1, 20, 25))
	assert.Empty(t, set.Earned(99, 0, 100))
}

func TestSet_HighestFor(t *testing.T) {
	set := testSet(t)

	_, ok := set.HighestFor(1, 4)
	assert.False(t, ok)

	a, ok := set.HighestFor(1, 5)
	require.True(t, ok)
	assert.Equal(t, shared.RoleID(100), a.RoleID)

	a, ok = set.HighestFor(1, 15)
	require.True(t, ok)
	assert.Equal(t, shared.RoleID(200), a.RoleID)

	a, ok = set.HighestFor(1, 100)
	require.True(t, ok)
	assert.Equal(t, shared.RoleID(300), a.RoleID)

	_, ok = set.HighestFor(2, 100)
	assert.False(t, ok)
}

func TestEmptySet(t *testing.T) {
	set := EmptySet()
	assert.Nil(t, set.ForGuild(1))
	assert.Empty(t, set.Earned(1, 0, 100))
	_, ok := set.HighestFor(1, 100)
	assert.False(t, ok)
}

func TestNewSet_CopiesInput(t *testing.T) {
	input := map[shared.GuildID][]RoleAward{
		1: {{RoleID: 100, LevelRequirement: 5}},
	}
	set, err := NewSet(input)
	require.NoError(t, err)

	input[1][0].RoleID = 999
	assert.Equal(t, shared.RoleID(100), set.ForGuild(1)[0].RoleID)
}
