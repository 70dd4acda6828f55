package query

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/persistence/memory"
)

func TestExportRecords_SingleGuild(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 500)
	seedRecord(t, repo, 1, 3, "bob", 900)
	seedRecord(t, repo, 2, 4, "carol", 100)

	handler := NewExportRecordsHandler(repo, nil)

	guildID := shared.GuildID(1)
	snap, err := handler.Handle(context.Background(), ExportRecordsQuery{GuildID: &guildID})
	require.NoError(t, err)

	assert.NotEmpty(t, snap.SnapshotID)
	assert.Equal(t, ExportFormatVersion, snap.Version)
	assert.Equal(t, int64(1), snap.GuildID)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "bob", snap.Records[0].MemberName)
	assert.NotEmpty(t, snap.Checksum)
}

func TestExportRecords_AllGuilds(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 500)
	seedRecord(t, repo, 2, 3, "bob", 900)

	handler := NewExportRecordsHandler(repo, nil)

	snap, err := handler.Handle(context.Background(), ExportRecordsQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.GuildID)
	assert.Len(t, snap.Records, 2)
}

func TestExportRecords_MarshalParseRoundTrip(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 500)
	handler := NewExportRecordsHandler(repo, nil)

	snap, err := handler.Handle(context.Background(), ExportRecordsQuery{})
	require.NoError(t, err)

	data, err := snap.Marshal()
	require.NoError(t, err)

	parsed, err := ParseSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.SnapshotID, parsed.SnapshotID)
	assert.Equal(t, snap.Checksum, parsed.Checksum)
	require.Len(t, parsed.Records, 1)
	assert.Equal(t, "alice", parsed.Records[0].MemberName)
	assert.Equal(t, int64(1), parsed.Records[0].Seq)
}

func TestParseSnapshot_DetectsTampering(t *testing.T) {
	repo := memory.NewMemberRepository()
	seedRecord(t, repo, 1, 2, "alice", 500)
	handler := NewExportRecordsHandler(repo, nil)

	snap, err := handler.Handle(context.Background(), ExportRecordsQuery{})
	require.NoError(t, err)

	data, err := snap.Marshal()
	require.NoError(t, err)

	tampered := bytes.Replace(data, []byte(`"total_xp": 500`), []byte(`"total_xp": 9999`), 1)
	require.NotEqual(t, data, tampered)

	_, err = ParseSnapshot(tampered)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestParseSnapshot_RejectsGarbage(t *testing.T) {
	_, err := ParseSnapshot([]byte("not json"))
	assert.Error(t, err)
}

func TestExportRecords_Validation(t *testing.T) {
	handler := NewExportRecordsHandler(memory.NewMemberRepository(), nil)

	bad := shared.GuildID(0)
	_, err := handler.Handle(context.Background(), ExportRecordsQuery{GuildID: &bad})
	assert.ErrorIs(t, err, member.ErrInvalidGuildID)
}
