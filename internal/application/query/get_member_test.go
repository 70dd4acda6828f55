package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/memory"
)

func TestGetMember_NextLevelFigures(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 150)
	handler := NewGetMemberHandler(repo)

	result, err := handler.Handle(context.Background(), GetMemberQuery{GuildID: 1, MemberID: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Record.Level)
	assert.Equal(t, 2, result.NextLevel)
	assert.Equal(t, 105, result.XPToNextLevel)
	assert.False(t, result.AtMaxLevel)
}

func TestGetMember_AtMaxLevel(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", progression.MaxXP)
	handler := NewGetMemberHandler(repo)

	result, err := handler.Handle(context.Background(), GetMemberQuery{GuildID: 1, MemberID: 2})
	require.NoError(t, err)

	assert.True(t, result.AtMaxLevel)
	assert.Equal(t, progression.MaxLevel, result.NextLevel)
	assert.Equal(t, 0, result.XPToNextLevel)
}

func TestGetMember_MissingRecord(t *testing.T) {
	handler := NewGetMemberHandler(memory.NewMemberRepository())

	_, err := handler.Handle(context.Background(), GetMemberQuery{GuildID: 1, MemberID: 2})
	assert.ErrorIs(t, err, member.ErrRecordNotFound)
}

func TestGetMember_IsInDatabase(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 10)
	handler := NewGetMemberHandler(repo)

	ok, err := handler.IsInDatabase(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = handler.IsInDatabase(context.Background(), 1, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMember_RecordCount(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 10)
	seedRecord(t, repo, 1, 3, "bob", 10)
	seedRecord(t, repo, 2, 4, "carol", 10)
	handler := NewGetMemberHandler(repo)

	total, err := handler.RecordCount(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	guildID := shared.GuildID(1)
	scoped, err := handler.RecordCount(context.Background(), &guildID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), scoped)
}
