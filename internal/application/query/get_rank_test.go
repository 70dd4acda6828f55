package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/memory"
)

// seedRecord inserts one record with a fixed total XP. Insertion order
// drives the Seq tie-break, so call order matters in these tests.
func seedRecord(t *testing.T, repo *memory.MemberRepository, guildID shared.GuildID, memberID shared.MemberID, name string, totalXP int) {
	t.Helper()
	rec, err := member.NewRecord(guildID, memberID, name)
	require.NoError(t, err)
	rec.ApplyTotalXP(totalXP)
	require.NoError(t, repo.Insert(context.Background(), rec))
}

func TestGetRank_OrdersByTotalXP(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 500)
	seedRecord(t, repo, 1, 3, "bob", 900)
	seedRecord(t, repo, 1, 4, "carol", 100)

	handler := NewGetRankHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rank)
	assert.Equal(t, 3, result.OutOf)
	assert.Equal(t, "bob", result.Record.Name)

	result, err = handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rank)
}

func TestGetRank_TiesKeepInsertionOrder(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 100)
	seedRecord(t, repo, 1, 3, "bob", 100)
	seedRecord(t, repo, 1, 4, "carol", 50)

	handler := NewGetRankHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rank)

	result, err = handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rank)

	result, err = handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rank)
}

func TestGetRank_MissingRecord(t *testing.T) {
	repo := memory.NewMemberRepository()
	handler := NewGetRankHandler(repo, nil, nil)

	_, err := handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 2})
	assert.ErrorIs(t, err, member.ErrRecordNotFound)
}

func TestGetRank_Validation(t *testing.T) {
	handler := NewGetRankHandler(memory.NewMemberRepository(), nil, nil)

	_, err := handler.Handle(context.Background(), GetRankQuery{GuildID: 0, MemberID: 2})
	assert.ErrorIs(t, err, member.ErrInvalidGuildID)

	_, err = handler.Handle(context.Background(), GetRankQuery{GuildID: 1, MemberID: 0})
	assert.ErrorIs(t, err, member.ErrInvalidMemberID)
}
