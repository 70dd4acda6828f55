package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAINTENANCE COMMANDS
// Destructive and housekeeping operations on the record store: resetting
// members back to zero, wiping whole guilds or the entire database, pruning
// records of members who left, and syncing stored display names.
// ══════════════════════════════════════════════════════════════════════════════

// ResetMemberCommand returns one member's record to level 0 with zero XP.
// The record itself is kept.
type ResetMemberCommand struct {
	GuildID  shared.GuildID
	MemberID shared.MemberID
}

// Validate checks the command.
func (c ResetMemberCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	return nil
}

// ResetGuildCommand zeroes every record in one guild. Records are kept, so
// names and insertion order survive. Intentional must be set.
type ResetGuildCommand struct {
	GuildID     shared.GuildID
	Intentional bool
}

// Validate checks the command.
func (c ResetGuildCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.Intentional {
		return shared.ErrNotConfirmed
	}
	return nil
}

// WipeGuildCommand deletes every record in one guild. Intentional must be
// set.
type WipeGuildCommand struct {
	GuildID     shared.GuildID
	Intentional bool
}

// Validate checks the command.
func (c WipeGuildCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.Intentional {
		return shared.ErrNotConfirmed
	}
	return nil
}

// WipeAllCommand deletes every record in every guild. Intentional must be
// set.
type WipeAllCommand struct {
	Intentional bool
}

// Validate checks the command.
func (c WipeAllCommand) Validate() error {
	if !c.Intentional {
		return shared.ErrNotConfirmed
	}
	return nil
}

// CleanStaleCommand removes records of members no longer present in the
// guild. Keep holds the IDs of everyone still in the guild; records outside
// it are deleted.
type CleanStaleCommand struct {
	GuildID shared.GuildID
	Keep    []shared.MemberID
}

// Validate checks the command.
func (c CleanStaleCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	return nil
}

// RefreshNamesCommand syncs stored display names with the current ones.
// Names maps member IDs to their current display names; members without a
// record, or whose stored name already matches, are skipped.
type RefreshNamesCommand struct {
	GuildID shared.GuildID
	Names   map[shared.MemberID]string
}

// Validate checks the command.
func (c RefreshNamesCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	return nil
}

// MaintenanceHandler handles the maintenance commands.
type MaintenanceHandler struct {
	core *ProgressionCore
	log  *logger.Logger
}

// NewMaintenanceHandler creates the maintenance handler.
func NewMaintenanceHandler(core *ProgressionCore, log *logger.Logger) *MaintenanceHandler {
	if log == nil {
		log = logger.Default()
	}
	return &MaintenanceHandler{
		core: core,
		log:  log.With(logger.Component("maintenance")),
	}
}

// ResetMember executes the reset member command. Resetting a member with no
// record is a no-op, not an error.
func (h *MaintenanceHandler) ResetMember(ctx context.Context, cmd ResetMemberCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("reset_member: %w", err)
	}

	key := shared.RecordKey{GuildID: cmd.GuildID, MemberID: cmd.MemberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := h.core.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("reset_member: %w", err)
	}

	rec.Reset()
	if err := h.core.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("reset_member: %w", err)
	}

	if h.core.publisher != nil {
		_ = h.core.publisher.Publish(shared.NewRecordResetEvent(
			key.String(),
			cmd.GuildID.Int64(),
			cmd.MemberID.Int64(),
		))
	}

	h.log.Info("reset member",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.MemberID(cmd.MemberID.Int64()),
	)

	return nil
}

// ResetGuild executes the reset guild command and returns how many records
// were zeroed.
func (h *MaintenanceHandler) ResetGuild(ctx context.Context, cmd ResetGuildCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("reset_guild: %w", err)
	}

	affected, err := h.core.repo.ResetGuild(ctx, cmd.GuildID)
	if err != nil {
		return 0, fmt.Errorf("reset_guild: %w", err)
	}

	h.log.Info("reset guild",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.Int64("affected", affected),
	)

	return affected, nil
}

// WipeGuild executes the wipe guild command and returns how many records
// were deleted.
func (h *MaintenanceHandler) WipeGuild(ctx context.Context, cmd WipeGuildCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("wipe_guild: %w", err)
	}

	removed, err := h.core.repo.DeleteByGuild(ctx, cmd.GuildID)
	if err != nil {
		return 0, fmt.Errorf("wipe_guild: %w", err)
	}

	if h.core.publisher != nil {
		_ = h.core.publisher.Publish(shared.NewGuildWipedEvent(
			cmd.GuildID.String(),
			cmd.GuildID.Int64(),
			removed,
		))
	}

	h.log.Info("wiped guild",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.Int64("removed", removed),
	)

	return removed, nil
}

// WipeAll executes the wipe all command and returns how many records were
// deleted across all guilds.
func (h *MaintenanceHandler) WipeAll(ctx context.Context, cmd WipeAllCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("wipe_all: %w", err)
	}

	removed, err := h.core.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("wipe_all: %w", err)
	}

	h.log.Warn("wiped all records", logger.Int64("removed", removed))

	return removed, nil
}

// RemoveRecord deletes one member's record entirely.
func (h *MaintenanceHandler) RemoveRecord(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID) error {
	if !guildID.IsValid() {
		return fmt.Errorf("remove_record: %w", member.ErrInvalidGuildID)
	}
	if !memberID.IsValid() {
		return fmt.Errorf("remove_record: %w", member.ErrInvalidMemberID)
	}

	key := shared.RecordKey{GuildID: guildID, MemberID: memberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	deleted, err := h.core.repo.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("remove_record: %w", err)
	}
	if !deleted {
		return fmt.Errorf("remove_record: %w", member.ErrRecordNotFound)
	}

	h.log.Info("removed record",
		logger.GuildID(guildID.Int64()),
		logger.MemberID(memberID.Int64()),
	)

	return nil
}

// CleanStale executes the clean stale command and returns how many records
// were pruned.
func (h *MaintenanceHandler) CleanStale(ctx context.Context, cmd CleanStaleCommand) (int64, error) {
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("clean_stale: %w", err)
	}

	removed, err := h.core.repo.DeleteStale(ctx, cmd.GuildID, cmd.Keep)
	if err != nil {
		return 0, fmt.Errorf("clean_stale: %w", err)
	}

	if removed > 0 {
		h.log.Info("cleaned stale records",
			logger.GuildID(cmd.GuildID.Int64()),
			logger.Int64("removed", removed),
		)
	}

	return removed, nil
}

// RefreshNames executes the refresh names command and returns how many
// records actually changed.
func (h *MaintenanceHandler) RefreshNames(ctx context.Context, cmd RefreshNamesCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("refresh_names: %w", err)
	}

	records, err := h.core.repo.ListByGuild(ctx, cmd.GuildID, member.ListOptions{SortKey: member.SortByName})
	if err != nil {
		return 0, fmt.Errorf("refresh_names: %w", err)
	}

	updated := 0
	for _, rec := range records {
		name, ok := cmd.Names[rec.MemberID]
		if !ok || name == "" || name == rec.Name {
			continue
		}

		key := rec.Key()
		unlock := h.core.Locks().Lock(key)

		if err := rec.Rename(name); err != nil {
			unlock()
			h.log.Warn("failed to rename record",
				logger.MemberID(rec.MemberID.Int64()),
				logger.Err(err),
			)
			continue
		}
		if err := h.core.repo.Update(ctx, rec); err != nil {
			unlock()
			return updated, fmt.Errorf("refresh_names: %w", err)
		}
		unlock()
		updated++
	}

	if updated > 0 {
		h.log.Info("refreshed member names",
			logger.GuildID(cmd.GuildID.Int64()),
			logger.Int("updated", updated),
		)
	}

	return updated, nil
}
