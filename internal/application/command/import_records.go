package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BULK IMPORT COMMAND
// Seeds or migrates records in bulk, typically from another leveling system.
// Values can arrive as total XP or as levels; either way the stored record
// is re-derived from the level curve so the invariants hold.
// ══════════════════════════════════════════════════════════════════════════════

// ImportMode selects how the imported values are interpreted.
type ImportMode string

const (
	// ImportXP treats values as total XP amounts.
	ImportXP ImportMode = "xp"

	// ImportLevels treats values as levels.
	ImportLevels ImportMode = "levels"
)

// ErrInvalidImportMode is returned for an unknown import mode.
var ErrInvalidImportMode = errors.New("command: import mode must be xp or levels")

// ImportEntry is one row of an import payload.
type ImportEntry struct {
	MemberID   shared.MemberID
	MemberName string

	// Value is either a total XP amount or a level, per the import mode.
	// Out-of-range values are clamped, not rejected.
	Value int
}

// ImportRecordsCommand bulk-loads records into one guild.
type ImportRecordsCommand struct {
	GuildID shared.GuildID
	Mode    ImportMode
	Entries []ImportEntry

	// Overwrite replaces existing records; when false, members who
	// already have a record are skipped.
	Overwrite bool
}

// Validate checks the command.
func (c ImportRecordsCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if c.Mode != ImportXP && c.Mode != ImportLevels {
		return ErrInvalidImportMode
	}
	for _, e := range c.Entries {
		if !e.MemberID.IsValid() {
			return member.ErrInvalidMemberID
		}
	}
	return nil
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	// ImportID identifies this import run in logs and events.
	ImportID string

	Inserted int
	Updated  int
	Skipped  int
}

// Total returns the number of entries processed.
func (r *ImportResult) Total() int {
	return r.Inserted + r.Updated + r.Skipped
}

// ImportRecordsHandler handles the import records command.
type ImportRecordsHandler struct {
	core *ProgressionCore
	log  *logger.Logger
}

// NewImportRecordsHandler creates the import handler.
func NewImportRecordsHandler(core *ProgressionCore, log *logger.Logger) *ImportRecordsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ImportRecordsHandler{
		core: core,
		log:  log.With(logger.Component("import_records")),
	}
}

// Handle executes the import records command.
//
// Entries are applied one by one; a storage failure aborts the run and
// returns the counts accumulated so far, so a partial import is visible to
// the caller. Level-up side effects (award roles, announcements) do not run
// during imports.
func (h *ImportRecordsHandler) Handle(ctx context.Context, cmd ImportRecordsCommand) (*ImportResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("import_records: %w", err)
	}

	result := &ImportResult{ImportID: uuid.New().String()}

	for _, entry := range cmd.Entries {
		total, err := h.totalXPFor(cmd.Mode, entry.Value)
		if err != nil {
			return result, fmt.Errorf("import_records: member %d: %w", entry.MemberID.Int64(), err)
		}

		if err := h.importOne(ctx, cmd, entry, total, result); err != nil {
			return result, fmt.Errorf("import_records: member %d: %w", entry.MemberID.Int64(), err)
		}
	}

	if h.core.publisher != nil {
		_ = h.core.publisher.Publish(shared.NewImportCompletedEvent(
			result.ImportID,
			cmd.GuildID.Int64(),
			result.Inserted,
			result.Updated,
			result.Skipped,
		))
	}

	h.log.Info("import completed",
		logger.String("import_id", result.ImportID),
		logger.GuildID(cmd.GuildID.Int64()),
		logger.Int("inserted", result.Inserted),
		logger.Int("updated", result.Updated),
		logger.Int("skipped", result.Skipped),
	)

	return result, nil
}

// totalXPFor converts one import value into a clamped total XP amount.
func (h *ImportRecordsHandler) totalXPFor(mode ImportMode, value int) (int, error) {
	switch mode {
	case ImportXP:
		return progression.ClampTotalXP(value), nil
	case ImportLevels:
		level := value
		if level < 0 {
			level = 0
		}
		if level > progression.MaxLevel {
			level = progression.MaxLevel
		}
		return progression.XPForLevel(level)
	default:
		return 0, ErrInvalidImportMode
	}
}

// importOne applies one entry under the record lock and bumps the counters.
func (h *ImportRecordsHandler) importOne(ctx context.Context, cmd ImportRecordsCommand, entry ImportEntry, total int, result *ImportResult) error {
	key := shared.RecordKey{GuildID: cmd.GuildID, MemberID: entry.MemberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := h.core.repo.Get(ctx, key)
	switch {
	case err == nil:
		if !cmd.Overwrite {
			result.Skipped++
			return nil
		}
		if entry.MemberName != "" && entry.MemberName != rec.Name {
			if renameErr := rec.Rename(entry.MemberName); renameErr != nil {
				return renameErr
			}
		}
		rec.ApplyTotalXP(total)
		if err := h.core.repo.Update(ctx, rec); err != nil {
			return err
		}
		result.Updated++
		return nil

	case errors.Is(err, member.ErrRecordNotFound):
		name := entry.MemberName
		if name == "" {
			name = entry.MemberID.String()
		}
		rec, err := member.NewRecord(cmd.GuildID, entry.MemberID, name)
		if err != nil {
			return err
		}
		rec.ApplyTotalXP(total)
		if err := h.core.repo.Insert(ctx, rec); err != nil {
			return err
		}
		result.Inserted++
		return nil

	default:
		return err
	}
}
