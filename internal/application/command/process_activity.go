package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/progression"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS ACTIVITY COMMAND
// Turns one inbound activity event (typically a chat message) into an XP
// grant: eligibility checks, the cooldown gate, bonus composition, record
// mutation, and the level-up side effects.
// ══════════════════════════════════════════════════════════════════════════════

// Activity describes one inbound activity event from the host application.
type Activity struct {
	// GuildID is the scope the event occurred in. Zero means a direct
	// message context; such events never award XP.
	GuildID shared.GuildID

	// MemberID is the acting user.
	MemberID shared.MemberID

	// MemberName is the user's current display name, used to lazily
	// create the record and to refresh a stale stored name.
	MemberName string

	// ChannelID is the channel the event came from; level-up
	// announcements fall back to it.
	ChannelID shared.ChannelID

	// RoleIDs are the roles the acting user currently holds.
	RoleIDs []shared.RoleID

	// IsBot marks automated accounts, which never earn XP.
	IsBot bool
}

// ProcessActivityCommand contains an activity event plus award parameters.
type ProcessActivityCommand struct {
	Activity Activity

	// Amount is the base award; the zero value means the conventional
	// 15-25 range.
	Amount progression.Amount

	// Bonus is the single optional bonus rule evaluated for this event.
	Bonus *progression.Bonus

	// RefreshName syncs the stored display name with Activity.MemberName
	// when they differ.
	RefreshName bool
}

// Outcome is the result of processing one activity event.
type Outcome struct {
	// Granted is false when the event was ignored (direct message,
	// no-XP role or channel, bot author, cooldown, engine paused).
	Granted bool

	// AwardedXP is the composed XP delta actually applied.
	AwardedXP int

	// NewTotalXP, OldLevel, and NewLevel describe the record after the
	// grant. Only meaningful when Granted.
	NewTotalXP int
	OldLevel   int
	NewLevel   int

	// Record is the record after the grant. Only set when Granted.
	Record *member.Record
}

// LeveledUp reports whether this grant crossed a level boundary upward.
func (o *Outcome) LeveledUp() bool {
	return o.Granted && o.NewLevel > o.OldLevel
}

// Ignored is the outcome of an ineligible event.
var Ignored = &Outcome{}

// ProcessActivityHandler handles the ProcessActivityCommand.
type ProcessActivityHandler struct {
	core *ProgressionCore
	log  *logger.Logger

	mu       sync.RWMutex
	gate     *progression.Gate
	gateOpts []progression.GateOption

	noXPRoles    map[shared.RoleID]bool
	noXPChannels map[shared.ChannelID]bool

	// active is the kill switch: when false every event is ignored.
	active bool
}

// ProcessActivityConfig contains configuration for the handler.
type ProcessActivityConfig struct {
	// Rate is the number of eligible events per cooldown window.
	Rate int

	// Per is the cooldown window duration.
	Per time.Duration

	// NoXPRoleIDs lists roles whose holders never gain XP.
	NoXPRoleIDs []shared.RoleID

	// NoXPChannelIDs lists channels where activity never gains XP.
	NoXPChannelIDs []shared.ChannelID
}

// DefaultProcessActivityConfig returns the conventional one-grant-per-minute
// cooldown.
func DefaultProcessActivityConfig() ProcessActivityConfig {
	return ProcessActivityConfig{
		Rate: 1,
		Per:  time.Minute,
	}
}

// NewProcessActivityHandler creates the activity handler. Fails with
// progression.ErrInvalidCooldown when the rate or period is not positive.
func NewProcessActivityHandler(core *ProgressionCore, log *logger.Logger, cfg ProcessActivityConfig, gateOpts ...progression.GateOption) (*ProcessActivityHandler, error) {
	gate, err := progression.NewGate(cfg.Rate, cfg.Per, gateOpts...)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.Default()
	}

	noXPRoles := make(map[shared.RoleID]bool, len(cfg.NoXPRoleIDs))
	for _, id := range cfg.NoXPRoleIDs {
		noXPRoles[id] = true
	}
	noXPChannels := make(map[shared.ChannelID]bool, len(cfg.NoXPChannelIDs))
	for _, id := range cfg.NoXPChannelIDs {
		noXPChannels[id] = true
	}

	return &ProcessActivityHandler{
		core:         core,
		log:          log.With(logger.Component("process_activity")),
		gate:         gate,
		gateOpts:     gateOpts,
		noXPRoles:    noXPRoles,
		noXPChannels: noXPChannels,
		active:       true,
	}, nil
}

// SetActive toggles the engine kill switch.
func (h *ProcessActivityHandler) SetActive(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = active
}

// Cooldown returns the current rate and window of the gate.
func (h *ProcessActivityHandler) Cooldown() (rate int, per time.Duration) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gate.Rate(), h.gate.Per()
}

// ChangeCooldown swaps in a new cooldown gate at runtime, carrying over
// the options the handler was constructed with. In-flight window state is
// discarded, which at worst lets a member earn one extra grant.
func (h *ProcessActivityHandler) ChangeCooldown(rate int, per time.Duration) error {
	gate, err := progression.NewGate(rate, per, h.gateOpts...)
	if err != nil {
		return err
	}

	h.mu.Lock()
	old := h.gate
	h.gate = gate
	h.mu.Unlock()

	old.Close()
	return nil
}

// Close releases the cooldown gate's background resources.
func (h *ProcessActivityHandler) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.gate.Close()
}

// Handle executes the process activity command.
//
// Ineligible events (direct messages, bot authors, no-XP roles or
// channels, cooldown) return the Ignored outcome with zero side effects on
// the store. Amount and bonus validation happens before the gate is
// consulted, so a malformed call never burns a member's window slot.
func (h *ProcessActivityHandler) Handle(ctx context.Context, cmd ProcessActivityCommand) (*Outcome, error) {
	act := cmd.Activity

	if !act.GuildID.IsValid() || act.IsBot {
		return Ignored, nil
	}
	if !h.isActive() {
		return Ignored, nil
	}
	if h.isNoXP(act) {
		return Ignored, nil
	}

	amount := cmd.Amount
	if amount == (progression.Amount{}) {
		amount = progression.DefaultAmount()
	}
	base, err := amount.Resolve()
	if err != nil {
		return nil, fmt.Errorf("process_activity: %w", err)
	}

	key := shared.RecordKey{GuildID: act.GuildID, MemberID: act.MemberID}
	if !h.allow(key) {
		return Ignored, nil
	}

	awarded := progression.ComputeAward(base, act.RoleIDs, cmd.Bonus)

	unlock := h.core.Locks().Lock(key)
	defer unlock()

	rec, err := h.core.getOrCreate(ctx, key, act.MemberName)
	if err != nil {
		return nil, fmt.Errorf("process_activity: %w", err)
	}

	if cmd.RefreshName && act.MemberName != "" && rec.Name != act.MemberName {
		if err := rec.Rename(act.MemberName); err != nil {
			h.log.Warn("failed to refresh member name", logger.Err(err))
		}
	}

	result, err := h.core.applyTotalXP(ctx, rec, rec.TotalXP+awarded, act.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("process_activity: %w", err)
	}

	h.core.publishXPAwarded(key, awarded, rec.TotalXP)

	h.log.Debug("awarded xp",
		logger.GuildID(act.GuildID.Int64()),
		logger.MemberID(act.MemberID.Int64()),
		logger.XPAmount(awarded),
		logger.LevelValue(rec.Level),
	)

	return &Outcome{
		Granted:    true,
		AwardedXP:  awarded,
		NewTotalXP: rec.TotalXP,
		OldLevel:   result.OldLevel,
		NewLevel:   result.NewLevel,
		Record:     rec,
	}, nil
}

func (h *ProcessActivityHandler) isActive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

func (h *ProcessActivityHandler) allow(key shared.RecordKey) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gate.Allow(key)
}

// isNoXP checks the no-XP channel list first; the role check only runs when
// the channel is eligible.
func (h *ProcessActivityHandler) isNoXP(act Activity) bool {
	if h.noXPChannels[act.ChannelID] {
		return true
	}
	for _, id := range act.RoleIDs {
		if h.noXPRoles[id] {
			return true
		}
	}
	return false
}
