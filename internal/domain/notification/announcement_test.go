package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

func TestNewAnnouncement_RejectsEmptyMessage(t *testing.T) {
	_, err := NewAnnouncement("   ", 0)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	a, err := NewAnnouncement("GG [$name]", shared.ChannelID(42))
	require.NoError(t, err)
	assert.Equal(t, shared.ChannelID(42), a.ChannelID)
}

func TestAnnouncement_Render_SubstitutesAllPlaceholders(t *testing.T) {
	a, err := NewAnnouncement(
		"[$mention] ([$name]) hit level [$level] with [$xp] xp, [$total_xp] total, rank [$rank]",
		0,
	)
	require.NoError(t, err)

	out := a.Render(RenderData{
		MemberID: shared.MemberID(77),
		Name:     "alice",
		Level:    12,
		XP:       5,
		TotalXP:  6100,
		Rank:     3,
	})
	assert.Equal(t, "<@77> (alice) hit level 12 with 5 xp, 6100 total, rank 3", out)
}

func TestAnnouncement_Render_LeavesPlainTextAlone(t *testing.T) {
	a := DefaultAnnouncement()
	out := a.Render(RenderData{MemberID: shared.MemberID(5), Level: 2})
	assert.Equal(t, "<@5>, you are now **level 2!**", out)
}

func TestNewPool_EmptyFallsBackToDefault(t *testing.T) {
	pool := NewPool()
	assert.Equal(t, DefaultMessage, pool.Pick().Message)
}

func TestPool_Pick_DrawsFromConfiguredTemplates(t *testing.T) {
	a, _ := NewAnnouncement("one", 0)
	b, _ := NewAnnouncement("two", 0)
	pool := NewPool(a, b)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[pool.Pick().Message] = true
	}
	assert.True(t, seen["one"])
	assert.True(t, seen["two"])
	assert.Len(t, seen, 2)
}

func TestNewPool_CopiesInput(t *testing.T) {
	a, _ := NewAnnouncement("one", 0)
	input := []Announcement{a}
	pool := NewPool(input...)

	input[0].Message = "mutated"
	assert.Equal(t, "one", pool.Pick().Message)
}
