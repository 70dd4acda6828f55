package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildxp/guildxp/internal/domain/award"
	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/notification"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION CORE
// Shared tail of every XP mutation: clamp the new total, re-derive the
// level, persist, grant award roles, announce, and publish events. Both the
// activity path and the manual mutations (add/remove/set) go through here so
// the XP/level invariant cannot drift between entry points.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionCore bundles the collaborators every write handler needs.
type ProgressionCore struct {
	repo      member.Repository
	awards    *award.Set
	roles     award.RoleManager
	announcer notification.Announcer
	pool      *notification.Pool
	publisher shared.EventPublisher
	locks     *RecordLocks
	log       *logger.Logger

	stackAwards     bool
	announceLevelUp bool
}

// ProgressionCoreConfig contains construction parameters for the core.
type ProgressionCoreConfig struct {
	// StackAwards keeps every earned award role when true; when false a
	// member holds at most one award role per guild at a time.
	StackAwards bool

	// AnnounceLevelUp controls whether level-up messages are sent.
	AnnounceLevelUp bool

	// Announcements is the template pool; nil means the default template.
	Announcements *notification.Pool
}

// NewProgressionCore creates the shared progression core.
func NewProgressionCore(
	repo member.Repository,
	awards *award.Set,
	roles award.RoleManager,
	announcer notification.Announcer,
	publisher shared.EventPublisher,
	log *logger.Logger,
	cfg ProgressionCoreConfig,
) *ProgressionCore {
	if awards == nil {
		awards = award.EmptySet()
	}
	pool := cfg.Announcements
	if pool == nil {
		pool = notification.NewPool()
	}
	if log == nil {
		log = logger.Default()
	}

	return &ProgressionCore{
		repo:            repo,
		awards:          awards,
		roles:           roles,
		announcer:       announcer,
		pool:            pool,
		publisher:       publisher,
		locks:           NewRecordLocks(),
		log:             log.With(logger.Component("progression")),
		stackAwards:     cfg.StackAwards,
		announceLevelUp: cfg.AnnounceLevelUp,
	}
}

// Repo exposes the member repository for read-side composition.
func (c *ProgressionCore) Repo() member.Repository {
	return c.repo
}

// Locks exposes the per-record lock table.
func (c *ProgressionCore) Locks() *RecordLocks {
	return c.locks
}

// publishXPAwarded emits the XP awarded event when a publisher is wired.
func (c *ProgressionCore) publishXPAwarded(key shared.RecordKey, amount, newTotal int) {
	if c.publisher == nil {
		return
	}
	_ = c.publisher.Publish(shared.NewXPAwardedEvent(
		key.String(),
		key.GuildID.Int64(),
		key.MemberID.Int64(),
		amount,
		newTotal,
	))
}

// publishXPRemoved emits the XP removed event when a publisher is wired.
func (c *ProgressionCore) publishXPRemoved(key shared.RecordKey, amount, newTotal int) {
	if c.publisher == nil {
		return
	}
	_ = c.publisher.Publish(shared.NewXPRemovedEvent(
		key.String(),
		key.GuildID.Int64(),
		key.MemberID.Int64(),
		amount,
		newTotal,
	))
}

// MutationResult describes one applied XP mutation.
type MutationResult struct {
	// Record is the record after the mutation.
	Record *member.Record

	// OldLevel and NewLevel bracket the level change; they are equal when
	// no boundary was crossed.
	OldLevel int
	NewLevel int

	// Rank is the member's 1-based rank after the mutation. Only computed
	// when a level-up fired (it feeds the announcement).
	Rank int
}

// LeveledUp reports whether the mutation crossed a level boundary upward.
func (r *MutationResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

// applyTotalXP assigns a new total XP to an already-loaded record, persists
// it, and runs the level-up side effects. The caller must hold the record's
// lock. channelID is where an announcement falls back to when no dedicated
// announcement channel is configured; zero suppresses the fallback.
func (c *ProgressionCore) applyTotalXP(ctx context.Context, rec *member.Record, newTotal int, channelID shared.ChannelID) (*MutationResult, error) {
	oldLevel := rec.Level
	rec.ApplyTotalXP(newTotal)

	if err := c.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}

	result := &MutationResult{
		Record:   rec,
		OldLevel: oldLevel,
		NewLevel: rec.Level,
	}

	if result.LeveledUp() {
		c.handleLevelUp(ctx, result, channelID)
	}

	return result, nil
}

// handleLevelUp grants award roles, sends the announcement, and publishes
// the level-up event. Chat-platform failures are logged, not propagated:
// the XP grant itself already succeeded.
func (c *ProgressionCore) handleLevelUp(ctx context.Context, result *MutationResult, channelID shared.ChannelID) {
	rec := result.Record

	c.grantAwards(ctx, rec, result.OldLevel, result.NewLevel)

	if rank, err := c.rankOf(ctx, rec); err == nil {
		result.Rank = rank
	}

	if c.announceLevelUp && c.announcer != nil {
		c.announce(ctx, rec, result.Rank, channelID)
	}

	if c.publisher != nil {
		event := shared.NewLevelUpEvent(
			rec.Key().String(),
			rec.GuildID.Int64(),
			rec.MemberID.Int64(),
			rec.Name,
			result.OldLevel,
			result.NewLevel,
			rec.TotalXP,
		)
		event.Rank = result.Rank
		if err := c.publisher.Publish(event); err != nil {
			c.log.Warn("failed to publish level-up event", logger.Err(err))
		}
	}
}

// grantAwards applies the role awards earned by a level change.
func (c *ProgressionCore) grantAwards(ctx context.Context, rec *member.Record, oldLevel, newLevel int) {
	if c.roles == nil {
		return
	}

	earned := c.awards.Earned(rec.GuildID, oldLevel, newLevel)
	if len(earned) == 0 {
		return
	}

	if c.stackAwards {
		for _, a := range earned {
			c.grantRole(ctx, rec, a)
		}
		return
	}

	// Non-stacking: the member holds at most one award role per guild.
	// Revoke every other configured award role before granting the
	// highest earned one.
	highest, ok := c.awards.HighestFor(rec.GuildID, newLevel)
	if !ok {
		return
	}
	for _, a := range c.awards.ForGuild(rec.GuildID) {
		if a.RoleID == highest.RoleID {
			continue
		}
		if err := c.roles.RevokeRole(ctx, rec.GuildID, rec.MemberID, a.RoleID); err != nil {
			c.log.Warn("failed to revoke award role",
				logger.GuildID(rec.GuildID.Int64()),
				logger.MemberID(rec.MemberID.Int64()),
				logger.RoleID(a.RoleID.Int64()),
				logger.Err(err),
			)
		}
	}
	c.grantRole(ctx, rec, highest)
}

func (c *ProgressionCore) grantRole(ctx context.Context, rec *member.Record, a award.RoleAward) {
	if err := c.roles.GrantRole(ctx, rec.GuildID, rec.MemberID, a.RoleID); err != nil {
		c.log.Warn("failed to grant award role",
			logger.GuildID(rec.GuildID.Int64()),
			logger.MemberID(rec.MemberID.Int64()),
			logger.RoleID(a.RoleID.Int64()),
			logger.Err(err),
		)
		return
	}

	if c.publisher != nil {
		_ = c.publisher.Publish(shared.NewRoleAwardedEvent(
			rec.Key().String(),
			rec.GuildID.Int64(),
			rec.MemberID.Int64(),
			a.RoleID.Int64(),
			a.LevelRequirement,
		))
	}
}

// announce renders and delivers the level-up message.
func (c *ProgressionCore) announce(ctx context.Context, rec *member.Record, rank int, fallback shared.ChannelID) {
	announcement := c.pool.Pick()

	target := announcement.ChannelID
	if !target.IsValid() {
		target = fallback
	}
	if !target.IsValid() {
		return
	}

	text := announcement.Render(notification.RenderData{
		MemberID: rec.MemberID,
		Name:     rec.Name,
		Level:    rec.Level,
		XP:       rec.XP,
		TotalXP:  rec.TotalXP,
		Rank:     rank,
	})

	if err := c.announcer.SendMessage(ctx, rec.GuildID, target, text); err != nil {
		c.log.Warn("failed to send level-up announcement",
			logger.GuildID(rec.GuildID.Int64()),
			logger.MemberID(rec.MemberID.Int64()),
			logger.Err(err),
		)
	}
}

// rankOf computes the member's 1-based rank within the guild.
func (c *ProgressionCore) rankOf(ctx context.Context, rec *member.Record) (int, error) {
	records, err := c.repo.ListByGuild(ctx, rec.GuildID, member.ListOptions{SortKey: member.SortByRank})
	if err != nil {
		return 0, err
	}
	for i, r := range records {
		if r.MemberID == rec.MemberID {
			return i + 1, nil
		}
	}
	return 0, member.ErrRecordNotFound
}

// getOrCreate loads the record for a key, lazily creating a zeroed one. The
// caller must hold the record's lock.
func (c *ProgressionCore) getOrCreate(ctx context.Context, key shared.RecordKey, name string) (*member.Record, error) {
	rec, err := c.repo.Get(ctx, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, member.ErrRecordNotFound) {
		return nil, err
	}

	rec, err = member.NewRecord(key.GuildID, key.MemberID, name)
	if err != nil {
		return nil, err
	}
	if err := c.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	if c.publisher != nil {
		_ = c.publisher.Publish(shared.NewRecordCreatedEvent(
			key.String(), key.GuildID.Int64(), key.MemberID.Int64(), name,
		))
	}

	return rec, nil
}
