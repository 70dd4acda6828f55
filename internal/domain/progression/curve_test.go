package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP_KnownThresholds(t *testing.T) {
	assert.Equal(t, 0, LevelForXP(0))
	assert.Equal(t, 0, LevelForXP(99))
	assert.Equal(t, 1, LevelForXP(100))
	assert.Equal(t, 1, LevelForXP(254))
	assert.Equal(t, 2, LevelForXP(255))
	assert.Equal(t, 10, LevelForXP(4675))
	assert.Equal(t, 50, LevelForXP(268375))
	assert.Equal(t, 100, LevelForXP(1899250))
}

func TestLevelForXP_NegativeInput(t *testing.T) {
	assert.Equal(t, 0, LevelForXP(-500))
}

func TestLevelForXP_BeyondCap(t *testing.T) {
	assert.Equal(t, MaxLevel, LevelForXP(MaxXP+1))
	assert.Equal(t, MaxLevel, LevelForXP(10_000_000))
}

func TestXPForLevel_RoundTrip(t *testing.T) {
	// Every threshold must map back to its own level.
	for level := 0; level <= MaxLevel; level++ {
		xp, err := XPForLevel(level)
		assert.NoError(t, err)
		assert.Equal(t, level, LevelForXP(xp), "level %d threshold %d", level, xp)

		// One XP short of the threshold is still the previous level.
		if level > 0 {
			assert.Equal(t, level-1, LevelForXP(xp-1))
		}
	}
}

func TestXPForLevel_OutOfRange(t *testing.T) {
	_, err := XPForLevel(-1)
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = XPForLevel(MaxLevel + 1)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestXPToNextLevel(t *testing.T) {
	assert.Equal(t, 100, XPToNextLevel(0))
	assert.Equal(t, 1, XPToNextLevel(99))
	assert.Equal(t, 155, XPToNextLevel(100)) // 255 - 100
	assert.Equal(t, 0, XPToNextLevel(MaxXP))
	assert.Equal(t, 0, XPToNextLevel(MaxXP+500))
}

func TestClampTotalXP(t *testing.T) {
	assert.Equal(t, 0, ClampTotalXP(-10))
	assert.Equal(t, 500, ClampTotalXP(500))
	assert.Equal(t, MaxXP, ClampTotalXP(MaxXP+1))
}

func TestThresholds_CopyIsStrictlyIncreasing(t *testing.T) {
	table := Thresholds()
	assert.Len(t, table, MaxLevel+1)

	for level := 1; level <= MaxLevel; level++ {
		assert.Greater(t, table[level], table[level-1], "threshold at level %d", level)
	}

	// Mutating the copy must not affect the curve.
	table[1] = 999999
	assert.Equal(t, 1, LevelForXP(100))
}
