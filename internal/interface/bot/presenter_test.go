package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/application/query"
	"github.com/guildxp/guildxp/internal/domain/member"
)

func TestFormatXP_ThousandsSeparators(t *testing.T) {
	assert.Equal(t, "0", formatXP(0))
	assert.Equal(t, "999", formatXP(999))
	assert.Equal(t, "1,000", formatXP(1000))
	assert.Equal(t, "1,899,250", formatXP(1899250))
	assert.Equal(t, "-12,345", formatXP(-12345))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "██████░░░░░░ 5/10", progressBar(5, 10, 12))
	assert.Equal(t, "░░░░░░░░░░░░ 0/10", progressBar(0, 10, 12))
	assert.Equal(t, "████████████ 10/10", progressBar(10, 10, 12))

	// Clamping and degenerate inputs.
	assert.Equal(t, "████████████ 10/10", progressBar(99, 10, 12))
	assert.Equal(t, "░░░░░░░░░░░░ 0/10", progressBar(-5, 10, 12))
	assert.Equal(t, "", progressBar(5, 0, 12))
}

func TestFormatLeaderboard_MedalsAndOverflowNote(t *testing.T) {
	p := NewPresenter()

	result := &query.GetLeaderboardResult{
		Entries: []query.LeaderboardEntryDTO{
			{Rank: 1, MemberName: "alice", Level: 10, TotalXP: 4675},
			{Rank: 2, MemberName: "bob", Level: 5, TotalXP: 1250},
			{Rank: 3, MemberName: "carol", Level: 3, TotalXP: 500},
			{Rank: 4, MemberName: "dave", Level: 1, TotalXP: 120},
		},
		TotalCount: 20,
	}

	out := p.FormatLeaderboard(result)
	assert.Contains(t, out, "🥇 alice")
	assert.Contains(t, out, "🥈 bob")
	assert.Contains(t, out, "🥉 carol")
	assert.Contains(t, out, " 4. dave")
	assert.Contains(t, out, "4,675")
	assert.Contains(t, out, "Showing 4 of 20 members")
}

func TestFormatLeaderboard_Empty(t *testing.T) {
	p := NewPresenter()
	assert.Contains(t, p.FormatLeaderboard(nil), "No one has earned XP")
	assert.Contains(t, p.FormatLeaderboard(&query.GetLeaderboardResult{}), "No one has earned XP")
}

func TestFormatRank(t *testing.T) {
	p := NewPresenter()

	rec, err := member.NewRecord(1, 2, "alice")
	require.NoError(t, err)
	rec.ApplyTotalXP(4675)

	out := p.FormatRank(&query.GetRankResult{Rank: 3, OutOf: 42, Record: rec})
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "rank 3 of 42")
	assert.Contains(t, out, "level 10")
}

func TestFormatMember_ShowsProgressTowardNextLevel(t *testing.T) {
	p := NewPresenter()

	rec, err := member.NewRecord(1, 2, "alice")
	require.NoError(t, err)
	rec.ApplyTotalXP(150)

	out := p.FormatMember(&query.GetMemberResult{
		Record:        rec,
		NextLevel:     2,
		XPToNextLevel: 105,
	})
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "Level 1")
	assert.Contains(t, out, "105 XP to level 2")
	assert.Contains(t, out, "50/155")
}

func TestFormatMember_AtMaxLevel(t *testing.T) {
	p := NewPresenter()

	rec, err := member.NewRecord(1, 2, "alice")
	require.NoError(t, err)

	out := p.FormatMember(&query.GetMemberResult{Record: rec, AtMaxLevel: true})
	assert.Contains(t, out, "Top of the curve")
	assert.NotContains(t, out, "to level")
}

func TestFormatNeighbors_MarksSelfAndGaps(t *testing.T) {
	p := NewPresenter()

	out := p.FormatNeighbors(&query.GetNeighborsResult{
		Rank:  5,
		OutOf: 10,
		Neighbors: []query.NeighborDTO{
			{Rank: 4, MemberName: "bob", Level: 3, TotalXP: 700, XPGap: 200},
			{Rank: 5, MemberName: "alice", Level: 2, TotalXP: 500, IsSelf: true},
			{Rank: 6, MemberName: "carol", Level: 2, TotalXP: 400, XPGap: -100},
		},
	})

	assert.Contains(t, out, "Around rank 5 of 10")
	assert.Contains(t, out, "▶  5. alice")
	assert.Contains(t, out, "[+200]")
	assert.Contains(t, out, "[-100]")
}

func TestFormatLevelUp(t *testing.T) {
	p := NewPresenter()
	out := p.FormatLevelUp("alice", 7, 2)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "level 7")
	assert.Contains(t, out, "#2")
}
