package command

import (
	"context"
	"fmt"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL XP MUTATIONS
// Administrative commands that adjust a member's progression outside the
// normal activity path: granting XP, removing XP, pinning a level, and
// registering a record by hand. All of them bypass the cooldown gate and
// bonus composition, but still trigger the full level-change side effects.
// ══════════════════════════════════════════════════════════════════════════════

// AddXPCommand grants a raw amount of XP to one member.
type AddXPCommand struct {
	GuildID    shared.GuildID
	MemberID   shared.MemberID
	MemberName string
	Amount     int

	// ChannelID is where a resulting level-up announcement is sent when
	// no dedicated announcement channel is configured.
	ChannelID shared.ChannelID
}

// Validate checks the command.
func (c AddXPCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	if c.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", shared.ErrValidation)
	}
	return nil
}

// RemoveXPCommand takes XP away from one member. The total never drops below
// zero.
type RemoveXPCommand struct {
	GuildID    shared.GuildID
	MemberID   shared.MemberID
	MemberName string
	Amount     int
	ChannelID  shared.ChannelID
}

// Validate checks the command.
func (c RemoveXPCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	if c.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", shared.ErrValidation)
	}
	return nil
}

// SetLevelCommand pins a member at an exact level. Total XP becomes exactly
// the threshold of that level, so in-level progress resets to zero.
type SetLevelCommand struct {
	GuildID    shared.GuildID
	MemberID   shared.MemberID
	MemberName string
	Level      int
	ChannelID  shared.ChannelID
}

// Validate checks the command.
func (c SetLevelCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	if c.Level < 0 || c.Level > progression.MaxLevel {
		return progression.ErrInvalidLevel
	}
	return nil
}

// AddRecordCommand registers a record by hand at a chosen starting level.
// Fails when the member already has a record in the guild.
type AddRecordCommand struct {
	GuildID    shared.GuildID
	MemberID   shared.MemberID
	MemberName string
	Level      int
}

// Validate checks the command.
func (c AddRecordCommand) Validate() error {
	if !c.GuildID.IsValid() {
		return member.ErrInvalidGuildID
	}
	if !c.MemberID.IsValid() {
		return member.ErrInvalidMemberID
	}
	if c.Level < 0 || c.Level > progression.MaxLevel {
		return progression.ErrInvalidLevel
	}
	return nil
}

// MutateXPHandler handles the manual progression mutation commands.
type MutateXPHandler struct {
	core *ProgressionCore
	log  *logger.Logger
}

// NewMutateXPHandler creates the manual mutation handler.
func NewMutateXPHandler(core *ProgressionCore, log *logger.Logger) *MutateXPHandler {
	if log == nil {
		log = logger.Default()
	}
	return &MutateXPHandler{
		core: core,
		log:  log.With(logger.Component("mutate_xp")),
	}
}

// AddXP executes the add XP command. The record is created on the fly when
// the member has none yet.
func (h *MutateXPHandler) AddXP(ctx context.Context, cmd AddXPCommand) (*MutationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_xp: %w", err)
	}

	key := shared.RecordKey{GuildID: cmd.GuildID, MemberID: cmd.MemberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := h.core.getOrCreate(ctx, key, cmd.MemberName)
	if err != nil {
		return nil, fmt.Errorf("add_xp: %w", err)
	}

	result, err := h.core.applyTotalXP(ctx, rec, rec.TotalXP+cmd.Amount, cmd.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("add_xp: %w", err)
	}

	h.core.publishXPAwarded(key, cmd.Amount, rec.TotalXP)

	h.log.Info("manually added xp",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.MemberID(cmd.MemberID.Int64()),
		logger.XPAmount(cmd.Amount),
	)

	return result, nil
}

// RemoveXP executes the remove XP command. Removing more XP than the member
// has floors the total at zero rather than failing.
func (h *MutateXPHandler) RemoveXP(ctx context.Context, cmd RemoveXPCommand) (*MutationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_xp: %w", err)
	}

	key := shared.RecordKey{GuildID: cmd.GuildID, MemberID: cmd.MemberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := h.core.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("remove_xp: %w", err)
	}

	result, err := h.core.applyTotalXP(ctx, rec, rec.TotalXP-cmd.Amount, cmd.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("remove_xp: %w", err)
	}

	h.core.publishXPRemoved(key, cmd.Amount, rec.TotalXP)

	h.log.Info("manually removed xp",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.MemberID(cmd.MemberID.Int64()),
		logger.XPAmount(cmd.Amount),
	)

	return result, nil
}

// SetLevel executes the set level command. The record is created on the fly
// when the member has none yet.
func (h *MutateXPHandler) SetLevel(ctx context.Context, cmd SetLevelCommand) (*MutationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("set_level: %w", err)
	}

	total, err := progression.XPForLevel(cmd.Level)
	if err != nil {
		return nil, fmt.Errorf("set_level: %w", err)
	}

	key := shared.RecordKey{GuildID: cmd.GuildID, MemberID: cmd.MemberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := h.core.getOrCreate(ctx, key, cmd.MemberName)
	if err != nil {
		return nil, fmt.Errorf("set_level: %w", err)
	}

	result, err := h.core.applyTotalXP(ctx, rec, total, cmd.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("set_level: %w", err)
	}

	h.log.Info("manually set level",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.MemberID(cmd.MemberID.Int64()),
		logger.LevelValue(cmd.Level),
	)

	return result, nil
}

// AddRecord executes the add record command.
func (h *MutateXPHandler) AddRecord(ctx context.Context, cmd AddRecordCommand) (*member.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_record: %w", err)
	}

	total, err := progression.XPForLevel(cmd.Level)
	if err != nil {
		return nil, fmt.Errorf("add_record: %w", err)
	}

	key := shared.RecordKey{GuildID: cmd.GuildID, MemberID: cmd.MemberID}

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := member.NewRecord(cmd.GuildID, cmd.MemberID, cmd.MemberName)
	if err != nil {
		return nil, fmt.Errorf("add_record: %w", err)
	}
	rec.ApplyTotalXP(total)

	if err := h.core.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("add_record: %w", err)
	}

	if h.core.publisher != nil {
		_ = h.core.publisher.Publish(shared.NewRecordCreatedEvent(
			key.String(),
			cmd.GuildID.Int64(),
			cmd.MemberID.Int64(),
			rec.Name,
		))
	}

	h.log.Info("added record",
		logger.GuildID(cmd.GuildID.Int64()),
		logger.MemberID(cmd.MemberID.Int64()),
		logger.LevelValue(cmd.Level),
	)

	return rec, nil
}
