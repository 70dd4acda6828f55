// Package notification contains the level-up announcement model: the
// templates that turn a level-up event into a displayable message, and the
// port that delivers it to the chat platform.
package notification

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// Template placeholders substituted when an announcement is rendered.
const (
	PlaceholderMention = "[$mention]"
	PlaceholderName    = "[$name]"
	PlaceholderLevel   = "[$level]"
	PlaceholderXP      = "[$xp]"
	PlaceholderTotalXP = "[$total_xp]"
	PlaceholderRank    = "[$rank]"
)

// DefaultMessage is the announcement used when none is configured.
const DefaultMessage = "[$mention], you are now **level [$level]!**"

// ErrEmptyMessage is returned when an announcement is built without text.
var ErrEmptyMessage = errors.New("notification: announcement message cannot be empty")

// ══════════════════════════════════════════════════════════════════════════════
// ANNOUNCEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Announcement is one level-up message template. When ChannelID is set the
// message goes to that channel; otherwise it goes to the channel the
// triggering activity came from.
type Announcement struct {
	// Message is the template text with [$...] placeholders.
	Message string

	// ChannelID optionally pins announcements to a dedicated channel.
	ChannelID shared.ChannelID
}

// NewAnnouncement validates and creates an announcement template.
func NewAnnouncement(message string, channelID shared.ChannelID) (Announcement, error) {
	if strings.TrimSpace(message) == "" {
		return Announcement{}, ErrEmptyMessage
	}
	return Announcement{Message: message, ChannelID: channelID}, nil
}

// DefaultAnnouncement returns the stock level-up announcement.
func DefaultAnnouncement() Announcement {
	return Announcement{Message: DefaultMessage}
}

// RenderData carries the member values substituted into a template.
type RenderData struct {
	MemberID shared.MemberID
	Name     string
	Level    int
	XP       int
	TotalXP  int
	Rank     int
}

// Render substitutes all placeholders in the template.
func (a Announcement) Render(data RenderData) string {
	replacer := strings.NewReplacer(
		PlaceholderMention, data.MemberID.Mention(),
		PlaceholderName, data.Name,
		PlaceholderLevel, strconv.Itoa(data.Level),
		PlaceholderXP, strconv.Itoa(data.XP),
		PlaceholderTotalXP, strconv.Itoa(data.TotalXP),
		PlaceholderRank, strconv.Itoa(data.Rank),
	)
	return replacer.Replace(a.Message)
}

// Pool is a non-empty collection of announcement templates; one is selected
// at random per level-up.
type Pool struct {
	announcements []Announcement
}

// NewPool creates a pool from one or more templates. An empty argument list
// yields a pool containing only the default announcement.
func NewPool(announcements ...Announcement) *Pool {
	if len(announcements) == 0 {
		announcements = []Announcement{DefaultAnnouncement()}
	}
	copied := make([]Announcement, len(announcements))
	copy(copied, announcements)
	return &Pool{announcements: copied}
}

// Pick returns one template, chosen at random when several are configured.
func (p *Pool) Pick() Announcement {
	if len(p.announcements) == 1 {
		return p.announcements[0]
	}
	return p.announcements[rand.IntN(len(p.announcements))]
}

// ══════════════════════════════════════════════════════════════════════════════
// ANNOUNCER PORT
// ══════════════════════════════════════════════════════════════════════════════

// Announcer is the chat-platform capability for delivering messages. The
// engine treats it as opaque; it never inspects transport details.
type Announcer interface {
	// SendMessage delivers text to a channel in a guild.
	SendMessage(ctx context.Context, guildID shared.GuildID, channelID shared.ChannelID, text string) error
}
