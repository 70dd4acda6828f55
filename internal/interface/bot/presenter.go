package bot

import (
	"fmt"
	"strings"

	"github.com/guildxp/guildxp/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENTER
// Formats query results into chat messages. Plain text, one message per
// reply, so the output survives any markdown dialect the platform speaks.
// ══════════════════════════════════════════════════════════════════════════════

// Presenter renders query results for chat display.
type Presenter struct{}

// NewPresenter creates a Presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// medals for the top three leaderboard rows.
var medals = [...]string{"🥇", "🥈", "🥉"}

// FormatLeaderboard renders a leaderboard page.
func (p *Presenter) FormatLeaderboard(result *query.GetLeaderboardResult) string {
	if result == nil || len(result.Entries) == 0 {
		return "No one has earned XP in this guild yet. Start chatting!"
	}

	var b strings.Builder
	b.WriteString("🏆 Leaderboard\n\n")

	for _, entry := range result.Entries {
		marker := fmt.Sprintf("%2d.", entry.Rank)
		if entry.Rank >= 1 && entry.Rank <= len(medals) {
			marker = medals[entry.Rank-1]
		}
		fmt.Fprintf(&b, "%s %s — level %d (%s XP)\n",
			marker, entry.MemberName, entry.Level, formatXP(entry.TotalXP))
	}

	if result.TotalCount > len(result.Entries) {
		fmt.Fprintf(&b, "\nShowing %d of %d members", len(result.Entries), result.TotalCount)
	}
	return b.String()
}

// FormatRank renders a single member's rank line.
func (p *Presenter) FormatRank(result *query.GetRankResult) string {
	if result == nil || result.Record == nil {
		return "No record yet. Chat a bit and check back."
	}
	return fmt.Sprintf("📊 %s — rank %d of %d, level %d with %s XP",
		result.Record.Name, result.Rank, result.OutOf,
		result.Record.Level, formatXP(result.Record.TotalXP))
}

// FormatMember renders a member card with progress toward the next level.
func (p *Presenter) FormatMember(result *query.GetMemberResult) string {
	if result == nil || result.Record == nil {
		return "No record yet. Chat a bit and check back."
	}

	rec := result.Record

	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\n", rec.Name)
	fmt.Fprintf(&b, "Level %d · %s XP total\n", rec.Level, formatXP(rec.TotalXP))

	if result.AtMaxLevel {
		b.WriteString("Top of the curve. Nothing left to climb. 🎉")
		return b.String()
	}

	span := rec.XP + result.XPToNextLevel
	fmt.Fprintf(&b, "%s\n", progressBar(rec.XP, span, 12))
	fmt.Fprintf(&b, "%s XP to level %d", formatXP(result.XPToNextLevel), result.NextLevel)
	return b.String()
}

// FormatNeighbors renders the window of members around a rank.
func (p *Presenter) FormatNeighbors(result *query.GetNeighborsResult) string {
	if result == nil || len(result.Neighbors) == 0 {
		return "No record yet. Chat a bit and check back."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 Around rank %d of %d\n\n", result.Rank, result.OutOf)

	for _, n := range result.Neighbors {
		marker := "  "
		if n.IsSelf {
			marker = "▶ "
		}
		fmt.Fprintf(&b, "%s%2d. %s — level %d (%s XP)",
			marker, n.Rank, n.MemberName, n.Level, formatXP(n.TotalXP))
		if !n.IsSelf && n.XPGap != 0 {
			fmt.Fprintf(&b, "  [%+d]", n.XPGap)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatLevelUp renders the level-up congratulation template.
func (p *Presenter) FormatLevelUp(memberName string, newLevel, rank int) string {
	return fmt.Sprintf("🎉 %s reached level %d! (rank #%d)", memberName, newLevel, rank)
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// progressBar renders a fixed-width unicode bar for current/total progress.
func progressBar(current, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}

	filled := current * width / total
	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	fmt.Fprintf(&b, " %d/%d", current, total)
	return b.String()
}

// formatXP renders an XP amount with thousands separators.
func formatXP(xp int) string {
	s := fmt.Sprintf("%d", xp)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
