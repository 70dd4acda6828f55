package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/memory"
)

func seedLeaderboard(t *testing.T) *memory.MemberRepository {
	t.Helper()
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 500)
	seedRecord(t, repo, 1, 3, "bob", 900)
	seedRecord(t, repo, 1, 4, "carol", 100)
	return repo
}

func TestGetLeaderboard_DefaultsToRankOrder(t *testing.T) {
	handler := NewGetLeaderboardHandler(seedLeaderboard(t), nil, nil)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{GuildID: 1})
	require.NoError(t, err)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, "bob", result.Entries[0].MemberName)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, "alice", result.Entries[1].MemberName)
	assert.Equal(t, "carol", result.Entries[2].MemberName)
	assert.Equal(t, 3, result.TotalCount)
	assert.False(t, result.FromCache)
}

func TestGetLeaderboard_LimitKeepsTotalCount(t *testing.T) {
	handler := NewGetLeaderboardHandler(seedLeaderboard(t), nil, nil)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{GuildID: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 3, result.TotalCount)
}

func TestGetLeaderboard_NameSortKeepsTrueRanks(t *testing.T) {
	handler := NewGetLeaderboardHandler(seedLeaderboard(t), nil, nil)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{
		GuildID: 1,
		SortKey: member.SortByName,
	})
	require.NoError(t, err)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, "alice", result.Entries[0].MemberName)
	assert.Equal(t, 2, result.Entries[0].Rank)
	assert.Equal(t, "bob", result.Entries[1].MemberName)
	assert.Equal(t, 1, result.Entries[1].Rank)
	assert.Equal(t, "carol", result.Entries[2].MemberName)
	assert.Equal(t, 3, result.Entries[2].Rank)
}

func TestGetLeaderboard_EmptyGuild(t *testing.T) {
	handler := NewGetLeaderboardHandler(memory.NewMemberRepository(), nil, nil)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{GuildID: 1})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Equal(t, 0, result.TotalCount)
}

func TestGetLeaderboard_Validation(t *testing.T) {
	handler := NewGetLeaderboardHandler(memory.NewMemberRepository(), nil, nil)

	_, err := handler.Handle(context.Background(), GetLeaderboardQuery{GuildID: 0})
	assert.ErrorIs(t, err, member.ErrInvalidGuildID)

	_, err = handler.Handle(context.Background(), GetLeaderboardQuery{GuildID: 1, SortKey: "mmr"})
	assert.ErrorIs(t, err, member.ErrInvalidSortKey)

	_, err = handler.Handle(context.Background(), GetLeaderboardQuery{GuildID: 1, Limit: -1})
	assert.ErrorIs(t, err, member.ErrInvalidLimit)
}
