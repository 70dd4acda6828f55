package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/guildxp/guildxp/internal/application/command"
	"github.com/guildxp/guildxp/internal/application/query"
	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLERS
// Thin glue between the router and the application layer. Each handler
// parses arguments, runs one query or command, and replies with the
// presenter's rendering.
// ══════════════════════════════════════════════════════════════════════════════

// Handlers bundles the application-layer dependencies of the chat commands.
type Handlers struct {
	rank        *query.GetRankHandler
	leaderboard *query.GetLeaderboardHandler
	neighbors   *query.GetNeighborsHandler
	members     *query.GetMemberHandler
	export      *query.ExportRecordsHandler

	mutate      *command.MutateXPHandler
	maintenance *command.MaintenanceHandler

	presenter *Presenter
}

// HandlersConfig lists the dependencies of NewHandlers.
type HandlersConfig struct {
	Rank        *query.GetRankHandler
	Leaderboard *query.GetLeaderboardHandler
	Neighbors   *query.GetNeighborsHandler
	Members     *query.GetMemberHandler
	Export      *query.ExportRecordsHandler
	Mutate      *command.MutateXPHandler
	Maintenance *command.MaintenanceHandler
}

// NewHandlers creates the command handler set.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		rank:        cfg.Rank,
		leaderboard: cfg.Leaderboard,
		neighbors:   cfg.Neighbors,
		members:     cfg.Members,
		export:      cfg.Export,
		mutate:      cfg.Mutate,
		maintenance: cfg.Maintenance,
		presenter:   NewPresenter(),
	}
}

// RegisterAll wires every command into the router.
func (h *Handlers) RegisterAll(r *Router) {
	r.Register("rank", h.Rank)
	r.Register("top", h.Top)
	r.Register("near", h.Near)
	r.Register("level", h.Level)
	r.Register("help", h.Help)

	r.RegisterAdmin("addxp", h.AddXP)
	r.RegisterAdmin("removexp", h.RemoveXP)
	r.RegisterAdmin("setlevel", h.SetLevel)
	r.RegisterAdmin("resetmember", h.ResetMember)
	r.RegisterAdmin("resetguild", h.ResetGuild)
	r.RegisterAdmin("export", h.Export)
}

// ─────────────────────────────────────────────────────────────────────────────
// MEMBER COMMANDS
// ─────────────────────────────────────────────────────────────────────────────

// Rank shows the invoker's (or a mentioned member's) rank line.
func (h *Handlers) Rank(ctx context.Context, cmd *CommandContext) error {
	memberID := cmd.MemberID
	if id, ok := parseMemberID(cmd.Arg(0)); ok {
		memberID = id
	}

	result, err := h.rank.Handle(ctx, query.GetRankQuery{
		GuildID:  cmd.GuildID,
		MemberID: memberID,
	})
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return cmd.Reply(ctx, "No record yet. Chat a bit and check back.")
		}
		return err
	}
	return cmd.Reply(ctx, h.presenter.FormatRank(result))
}

// Top shows the guild leaderboard. Optional argument: page size (max 25).
func (h *Handlers) Top(ctx context.Context, cmd *CommandContext) error {
	limit := 10
	if n, err := strconv.Atoi(cmd.Arg(0)); err == nil && n > 0 {
		limit = n
		if limit > 25 {
			limit = 25
		}
	}

	result, err := h.leaderboard.Handle(ctx, query.GetLeaderboardQuery{
		GuildID: cmd.GuildID,
		SortKey: member.SortByRank,
		Limit:   limit,
	})
	if err != nil {
		return err
	}
	return cmd.Reply(ctx, h.presenter.FormatLeaderboard(result))
}

// Near shows the members ranked around the invoker.
func (h *Handlers) Near(ctx context.Context, cmd *CommandContext) error {
	result, err := h.neighbors.Handle(ctx, query.GetNeighborsQuery{
		GuildID:  cmd.GuildID,
		MemberID: cmd.MemberID,
	})
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return cmd.Reply(ctx, "No record yet. Chat a bit and check back.")
		}
		return err
	}
	return cmd.Reply(ctx, h.presenter.FormatNeighbors(result))
}

// Level shows the member card with progress toward the next level.
func (h *Handlers) Level(ctx context.Context, cmd *CommandContext) error {
	memberID := cmd.MemberID
	if id, ok := parseMemberID(cmd.Arg(0)); ok {
		memberID = id
	}

	result, err := h.members.Handle(ctx, query.GetMemberQuery{
		GuildID:  cmd.GuildID,
		MemberID: memberID,
	})
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return cmd.Reply(ctx, "No record yet. Chat a bit and check back.")
		}
		return err
	}
	return cmd.Reply(ctx, h.presenter.FormatMember(result))
}

// Help lists the member-facing commands.
func (h *Handlers) Help(ctx context.Context, cmd *CommandContext) error {
	lines := []string{
		"GuildXP commands:",
		"!rank [@member] — show a rank",
		"!top [n] — show the leaderboard",
		"!near — show members ranked around you",
		"!level [@member] — show a member card",
	}
	if cmd.IsAdmin {
		lines = append(lines,
			"",
			"Admin:",
			"!addxp @member <amount>",
			"!removexp @member <amount>",
			"!setlevel @member <level>",
			"!resetmember @member",
			"!resetguild confirm",
			"!export",
		)
	}
	return cmd.Reply(ctx, strings.Join(lines, "\n"))
}

// ─────────────────────────────────────────────────────────────────────────────
// ADMIN COMMANDS
// ─────────────────────────────────────────────────────────────────────────────

// AddXP grants XP to a member: !addxp @member <amount>.
func (h *Handlers) AddXP(ctx context.Context, cmd *CommandContext) error {
	memberID, amount, err := parseMemberAndAmount(cmd)
	if err != nil {
		return cmd.Reply(ctx, "Usage: !addxp @member <amount>")
	}

	result, err := h.mutate.AddXP(ctx, command.AddXPCommand{
		GuildID:   cmd.GuildID,
		MemberID:  memberID,
		Amount:    amount,
		ChannelID: cmd.ChannelID,
	})
	if err != nil {
		return err
	}
	return cmd.Reply(ctx, fmt.Sprintf("Added %s XP to %s (level %d, %s XP total).",
		formatXP(amount), result.Record.Name, result.Record.Level, formatXP(result.Record.TotalXP)))
}

// RemoveXP removes XP from a member: !removexp @member <amount>.
func (h *Handlers) RemoveXP(ctx context.Context, cmd *CommandContext) error {
	memberID, amount, err := parseMemberAndAmount(cmd)
	if err != nil {
		return cmd.Reply(ctx, "Usage: !removexp @member <amount>")
	}

	result, err := h.mutate.RemoveXP(ctx, command.RemoveXPCommand{
		GuildID:   cmd.GuildID,
		MemberID:  memberID,
		Amount:    amount,
		ChannelID: cmd.ChannelID,
	})
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return cmd.Reply(ctx, "That member has no record.")
		}
		return err
	}
	return cmd.Reply(ctx, fmt.Sprintf("Removed %s XP from %s (level %d, %s XP total).",
		formatXP(amount), result.Record.Name, result.Record.Level, formatXP(result.Record.TotalXP)))
}

// SetLevel pins a member to an exact level: !setlevel @member <level>.
func (h *Handlers) SetLevel(ctx context.Context, cmd *CommandContext) error {
	memberID, level, err := parseMemberAndAmount(cmd)
	if err != nil {
		return cmd.Reply(ctx, "Usage: !setlevel @member <level>")
	}

	result, err := h.mutate.SetLevel(ctx, command.SetLevelCommand{
		GuildID:   cmd.GuildID,
		MemberID:  memberID,
		Level:     level,
		ChannelID: cmd.ChannelID,
	})
	if err != nil {
		return err
	}
	return cmd.Reply(ctx, fmt.Sprintf("%s is now level %d (%s XP total).",
		result.Record.Name, result.Record.Level, formatXP(result.Record.TotalXP)))
}

// ResetMember zeroes one member's progress: !resetmember @member.
func (h *Handlers) ResetMember(ctx context.Context, cmd *CommandContext) error {
	memberID, ok := parseMemberID(cmd.Arg(0))
	if !ok {
		return cmd.Reply(ctx, "Usage: !resetmember @member")
	}

	err := h.maintenance.ResetMember(ctx, command.ResetMemberCommand{
		GuildID:  cmd.GuildID,
		MemberID: memberID,
	})
	if err != nil {
		if errors.Is(err, member.ErrRecordNotFound) {
			return cmd.Reply(ctx, "That member has no record.")
		}
		return err
	}
	return cmd.Reply(ctx, "Member progress reset.")
}

// ResetGuild zeroes every record in the guild. Requires the literal word
// "confirm" as the first argument.
func (h *Handlers) ResetGuild(ctx context.Context, cmd *CommandContext) error {
	if !strings.EqualFold(cmd.Arg(0), "confirm") {
		return cmd.Reply(ctx, "This resets every member's progress. Run `!resetguild confirm` to proceed.")
	}

	affected, err := h.maintenance.ResetGuild(ctx, command.ResetGuildCommand{
		GuildID:     cmd.GuildID,
		Intentional: true,
	})
	if err != nil {
		return err
	}
	return cmd.Reply(ctx, fmt.Sprintf("Reset %d records.", affected))
}

// Export snapshots the guild's records and reports the result.
func (h *Handlers) Export(ctx context.Context, cmd *CommandContext) error {
	guildID := cmd.GuildID
	snapshot, err := h.export.Handle(ctx, query.ExportRecordsQuery{GuildID: &guildID})
	if err != nil {
		return err
	}
	return cmd.Reply(ctx, fmt.Sprintf("Exported %d records. Snapshot %s, checksum %s.",
		len(snapshot.Records), snapshot.SnapshotID, snapshot.Checksum))
}

// ─────────────────────────────────────────────────────────────────────────────
// ARGUMENT PARSING
// ─────────────────────────────────────────────────────────────────────────────

// parseMemberID accepts a mention ("<@12345>") or a bare numeric ID.
func parseMemberID(arg string) (shared.MemberID, bool) {
	if arg == "" {
		return 0, false
	}

	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return shared.MemberID(n), true
}

// parseMemberAndAmount parses the common "@member <n>" argument pair.
func parseMemberAndAmount(cmd *CommandContext) (shared.MemberID, int, error) {
	memberID, ok := parseMemberID(cmd.Arg(0))
	if !ok {
		return 0, 0, fmt.Errorf("invalid member argument %q", cmd.Arg(0))
	}
	n, err := strconv.Atoi(cmd.Arg(1))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid amount argument %q: %w", cmd.Arg(1), err)
	}
	return memberID, n, nil
}
