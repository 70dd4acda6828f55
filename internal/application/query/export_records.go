package query

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT RECORDS QUERY
// Serializes records into a portable JSON snapshot for backups and
// migrations. Each snapshot carries a checksum over its record payload so a
// re-import can detect truncated or edited files before touching the store.
// ══════════════════════════════════════════════════════════════════════════════

// ExportFormatVersion is bumped whenever the snapshot layout changes.
const ExportFormatVersion = 1

// ExportRecordsQuery contains the export request parameters. A nil GuildID
// exports every guild.
type ExportRecordsQuery struct {
	GuildID *shared.GuildID
}

// Validate checks the query parameters.
func (q ExportRecordsQuery) Validate() error {
	if q.GuildID != nil && !q.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	return nil
}

// ExportedRecord is one record row in a snapshot. Seq is included so an
// import into a fresh store can restore rank tie-break order.
type ExportedRecord struct {
	GuildID    int64  `json:"guild_id"`
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	Level      int    `json:"level"`
	XP         int    `json:"xp"`
	TotalXP    int    `json:"total_xp"`
	Seq        int64  `json:"seq"`
}

// Snapshot is a complete export payload.
type Snapshot struct {
	// SnapshotID uniquely identifies this export run.
	SnapshotID string `json:"snapshot_id"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	// GuildID is set for single-guild exports, zero for full exports.
	GuildID int64 `json:"guild_id,omitempty"`

	Records []ExportedRecord `json:"records"`

	// Checksum is the hex BLAKE2b-256 digest of the JSON-encoded
	// records array.
	Checksum string `json:"checksum"`
}

// ErrChecksumMismatch is returned when a snapshot's checksum does not match
// its records.
var ErrChecksumMismatch = fmt.Errorf("%w: snapshot checksum mismatch", shared.ErrValidation)

// ExportRecordsHandler handles export queries.
type ExportRecordsHandler struct {
	repo member.Repository
	log  *logger.Logger
}

// NewExportRecordsHandler creates the export handler.
func NewExportRecordsHandler(repo member.Repository, log *logger.Logger) *ExportRecordsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ExportRecordsHandler{
		repo: repo,
		log:  log.With(logger.Component("export_records")),
	}
}

// Handle executes the export query and returns the snapshot. Records are
// exported in insertion order.
func (h *ExportRecordsHandler) Handle(ctx context.Context, query ExportRecordsQuery) (*Snapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("export_records: %w", err)
	}

	var (
		records []*member.Record
		err     error
	)
	if query.GuildID != nil {
		records, err = h.repo.ListByGuild(ctx, *query.GuildID, member.ListOptions{SortKey: member.SortByRank})
	} else {
		records, err = h.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("export_records: %w", err)
	}

	exported := make([]ExportedRecord, 0, len(records))
	for _, rec := range records {
		exported = append(exported, ExportedRecord{
			GuildID:    rec.GuildID.Int64(),
			MemberID:   rec.MemberID.Int64(),
			MemberName: rec.Name,
			Level:      rec.Level,
			XP:         rec.XP,
			TotalXP:    rec.TotalXP,
			Seq:        rec.Seq,
		})
	}

	checksum, err := checksumRecords(exported)
	if err != nil {
		return nil, fmt.Errorf("export_records: %w", err)
	}

	snap := &Snapshot{
		SnapshotID: uuid.New().String(),
		Version:    ExportFormatVersion,
		CreatedAt:  time.Now().UTC(),
		Records:    exported,
		Checksum:   checksum,
	}
	if query.GuildID != nil {
		snap.GuildID = query.GuildID.Int64()
	}

	h.log.Info("exported records",
		logger.String("snapshot_id", snap.SnapshotID),
		logger.Int("records", len(exported)),
	)

	return snap, nil
}

// Marshal renders a snapshot as indented JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export_records: failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// ParseSnapshot decodes a snapshot and verifies its checksum.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("export_records: failed to parse snapshot: %w", err)
	}

	checksum, err := checksumRecords(snap.Records)
	if err != nil {
		return nil, fmt.Errorf("export_records: %w", err)
	}
	if checksum != snap.Checksum {
		return nil, ErrChecksumMismatch
	}

	return &snap, nil
}

// checksumRecords computes the hex BLAKE2b-256 digest of the JSON-encoded
// records array.
func checksumRecords(records []ExportedRecord) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode records for checksum: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
