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

func newNeighborsHandler(repo *memory.MemberRepository) *GetNeighborsHandler {
	return NewGetNeighborsHandler(NewGetRankHandler(repo, nil, nil))
}

func TestGetNeighbors_WindowAroundMember(t *testing.T) {
	repo := memory.NewMemberRepository()
	for i := 1; i <= 10; i++ {
		seedRecord(t, repo, 1, shared.MemberID(i), "member", (11-i)*100)
	}
	handler := newNeighborsHandler(repo)

	result, err := handler.Handle(context.Background(), GetNeighborsQuery{
		GuildID:   1,
		MemberID:  5,
		RangeSize: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Rank)
	assert.Equal(t, 10, result.OutOf)
	require.Len(t, result.Neighbors, 5)

	assert.Equal(t, 3, result.Neighbors[0].Rank)
	assert.Equal(t, 7, result.Neighbors[4].Rank)

	self := result.Neighbors[2]
	assert.True(t, self.IsSelf)
	assert.Equal(t, 0, self.XPGap)

	// Members above have a positive gap, members below a negative one.
	assert.Equal(t, 200, result.Neighbors[0].XPGap)
	assert.Equal(t, -200, result.Neighbors[4].XPGap)
}

func TestGetNeighbors_WindowClampsAtEdges(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 300)
	seedRecord(t, repo, 1, 3, "bob", 200)
	seedRecord(t, repo, 1, 4, "carol", 100)
	handler := newNeighborsHandler(repo)

	result, err := handler.Handle(context.Background(), GetNeighborsQuery{
		GuildID:   1,
		MemberID:  2,
		RangeSize: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rank)
	assert.Len(t, result.Neighbors, 3)
	assert.True(t, result.Neighbors[0].IsSelf)
}

func TestGetNeighbors_RangeSizeDefaultsAndCaps(t *testing.T) {
	q := GetNeighborsQuery{GuildID: 1, MemberID: 2}
	require.NoError(t, q.Validate())
	assert.Equal(t, 5, q.RangeSize)

	q = GetNeighborsQuery{GuildID: 1, MemberID: 2, RangeSize: 100}
	require.NoError(t, q.Validate())
	assert.Equal(t, 25, q.RangeSize)

	q = GetNeighborsQuery{GuildID: 1, MemberID: 2, RangeSize: -1}
	assert.ErrorIs(t, q.Validate(), member.ErrInvalidLimit)
}

func TestGetNeighbors_MissingRecord(t *testing.T) {
	handler := newNeighborsHandler(memory.NewMemberRepository())

	_, err := handler.Handle(context.Background(), GetNeighborsQuery{GuildID: 1, MemberID: 2})
	assert.ErrorIs(t, err, member.ErrRecordNotFound)
}
