package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/award"
	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/memory"
)

func newImportFixture(t *testing.T) (*memory.MemberRepository, *ImportRecordsHandler) {
	t.Helper()
	repo := memory.NewMemberRepository()
	core := NewProgressionCore(repo, award.EmptySet(), nil, nil, nil, nil, ProgressionCoreConfig{})
	return repo, NewImportRecordsHandler(core, nil)
}

func TestImportRecords_XPMode(t *testing.T) {
	repo, handler := newImportFixture(t)

	result, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1,
		Mode:    ImportXP,
		Entries: []ImportEntry{
			{MemberID: 2, MemberName: "alice", Value: 4675},
			{MemberID: 3, MemberName: "bob", Value: 50},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.NotEmpty(t, result.ImportID)

	rec, err := repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Level)
	assert.Equal(t, 4675, rec.TotalXP)
}

func TestImportRecords_LevelsMode(t *testing.T) {
	repo, handler := newImportFixture(t)

	result, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1,
		Mode:    ImportLevels,
		Entries: []ImportEntry{
			{MemberID: 2, MemberName: "alice", Value: 10},
			{MemberID: 3, MemberName: "bob", Value: 200}, // clamped to 100
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	rec, err := repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Level)
	assert.Equal(t, 0, rec.XP)

	rec, err = repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 3})
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Level)
}

func TestImportRecords_SkipsExistingWithoutOverwrite(t *testing.T) {
	repo, handler := newImportFixture(t)

	rec, err := member.NewRecord(1, 2, "alice")
	require.NoError(t, err)
	rec.ApplyTotalXP(999)
	require.NoError(t, repo.Insert(context.Background(), rec))

	result, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1,
		Mode:    ImportXP,
		Entries: []ImportEntry{
			{MemberID: 2, MemberName: "alice", Value: 10},
			{MemberID: 3, MemberName: "bob", Value: 20},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Total())

	stored, err := repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 2})
	require.NoError(t, err)
	assert.Equal(t, 999, stored.TotalXP)
}

func TestImportRecords_OverwriteReplacesExisting(t *testing.T) {
	repo, handler := newImportFixture(t)

	rec, err := member.NewRecord(1, 2, "old-name")
	require.NoError(t, err)
	rec.ApplyTotalXP(999)
	require.NoError(t, repo.Insert(context.Background(), rec))

	result, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID:   1,
		Mode:      ImportXP,
		Overwrite: true,
		Entries: []ImportEntry{
			{MemberID: 2, MemberName: "alice", Value: 10},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	stored, err := repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, stored.TotalXP)
	assert.Equal(t, "alice", stored.Name)
}

func TestImportRecords_MissingNameFallsBackToMemberID(t *testing.T) {
	repo, handler := newImportFixture(t)

	_, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1,
		Mode:    ImportXP,
		Entries: []ImportEntry{{MemberID: 42, Value: 10}},
	})
	require.NoError(t, err)

	rec, err := repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 42})
	require.NoError(t, err)
	assert.Equal(t, "42", rec.Name)
}

func TestImportRecords_Validation(t *testing.T) {
	_, handler := newImportFixture(t)

	_, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 0, Mode: ImportXP,
	})
	assert.ErrorIs(t, err, member.ErrInvalidGuildID)

	_, err = handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1, Mode: ImportMode("csv"),
	})
	assert.ErrorIs(t, err, ErrInvalidImportMode)

	_, err = handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1, Mode: ImportXP,
		Entries: []ImportEntry{{MemberID: 0, Value: 10}},
	})
	assert.ErrorIs(t, err, member.ErrInvalidMemberID)
}

func TestImportRecords_NegativeXPClampsToZero(t *testing.T) {
	repo, handler := newImportFixture(t)

	_, err := handler.Handle(context.Background(), ImportRecordsCommand{
		GuildID: 1,
		Mode:    ImportXP,
		Entries: []ImportEntry{{MemberID: 2, MemberName: "alice", Value: -500}},
	})
	require.NoError(t, err)

	rec, err := repo.Get(context.Background(), shared.RecordKey{GuildID: 1, MemberID: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TotalXP)
}
