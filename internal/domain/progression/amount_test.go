package progression

import (
	"testing"

	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedAmount_Resolve(t *testing.T) {
	n, err := Fixed(10).Resolve()
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestRangeAmount_ResolveStaysInBounds(t *testing.T) {
	amount := Range(15, 25)
	for i := 0; i < 200; i++ {
		n, err := amount.Resolve()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 15)
		assert.LessOrEqual(t, n, 25)
	}
}

func TestRangeAmount_SwapsReversedBounds(t *testing.T) {
	n, err := Range(20, 20).Resolve()
	assert.NoError(t, err)
	assert.Equal(t, 20, n)

	reversed := Range(25, 15)
	for i := 0; i < 50; i++ {
		n, err := reversed.Resolve()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 15)
		assert.LessOrEqual(t, n, 25)
	}
}

func TestAmount_ResolveRejectsOutOfBounds(t *testing.T) {
	_, err := Fixed(0).Resolve()
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Fixed(26).Resolve()
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Range(0, 25).Resolve()
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDefaultAmount_IsConventionalRange(t *testing.T) {
	amount := DefaultAmount()
	assert.True(t, amount.IsRange())
	for i := 0; i < 100; i++ {
		n, err := amount.Resolve()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 15)
		assert.LessOrEqual(t, n, 25)
	}
}

func TestNewBonus_RequiresRoles(t *testing.T) {
	_, err := NewBonus(nil, 20)
	assert.ErrorIs(t, err, ErrEmptyBonusRoles)
}

func TestNewMultiplierBonus_RejectsFactorOverCap(t *testing.T) {
	roles := []shared.RoleID{1}

	_, err := NewMultiplierBonus(roles, 3.5)
	assert.ErrorIs(t, err, ErrBonusFactorTooLarge)

	bonus, err := NewMultiplierBonus(roles, 3)
	assert.NoError(t, err)
	assert.True(t, bonus.Multiply)
}

func TestComputeAward_AdditiveBonus(t *testing.T) {
	bonus, err := NewBonus([]shared.RoleID{42}, 20)
	require.NoError(t, err)

	// Member holds the bonus role: 10 + 20 = 30.
	assert.Equal(t, 30, ComputeAward(10, []shared.RoleID{42}, bonus))

	// Member does not hold the role: base only.
	assert.Equal(t, 10, ComputeAward(10, []shared.RoleID{7}, bonus))
}

func TestComputeAward_MultiplierBonus(t *testing.T) {
	bonus, err := NewMultiplierBonus([]shared.RoleID{42}, 2)
	require.NoError(t, err)

	// 10 x 2 = 20.
	assert.Equal(t, 20, ComputeAward(10, []shared.RoleID{42}, bonus))
}

func TestComputeAward_FractionalMultiplierRounds(t *testing.T) {
	bonus, err := NewMultiplierBonus([]shared.RoleID{42}, 1.5)
	require.NoError(t, err)

	// 15 x 1.5 = 22.5, rounded to 23.
	assert.Equal(t, 23, ComputeAward(15, []shared.RoleID{42}, bonus))
}

func TestComputeAward_CapsBoostedAward(t *testing.T) {
	bonus, err := NewMultiplierBonus([]shared.RoleID{42}, 3)
	require.NoError(t, err)

	// 25 x 3 = 75 stays; anything above is clamped.
	assert.Equal(t, 75, ComputeAward(25, []shared.RoleID{42}, bonus))

	additive, err := NewBonus([]shared.RoleID{42}, 60)
	require.NoError(t, err)
	assert.Equal(t, MaxBoostedAwardXP, ComputeAward(25, []shared.RoleID{42}, additive))
}

func TestComputeAward_NoBonus(t *testing.T) {
	assert.Equal(t, 17, ComputeAward(17, []shared.RoleID{1, 2}, nil))
}
