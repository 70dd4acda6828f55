package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guildxp/guildxp/internal/application/command"
	"github.com/guildxp/guildxp/internal/domain/notification"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/external/chat"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// Long-polls the chat platform, feeds every guild message through the
// progression pipeline, and routes prefixed messages to commands.
// ══════════════════════════════════════════════════════════════════════════════

// Bot errors.
var (
	ErrBotAlreadyRunning = errors.New("bot: already running")
	ErrBotNotRunning     = errors.New("bot: not running")
)

// UpdateSource delivers batches of platform updates.
type UpdateSource interface {
	PollUpdates(ctx context.Context, limit, timeoutSeconds int) ([]chat.Update, error)
}

// BotConfig holds bot tuning knobs.
type BotConfig struct {
	// PollLimit is the max updates fetched per long-poll request.
	PollLimit int

	// PollTimeout is the long-poll hold time in seconds.
	PollTimeout int

	// HandleTimeout bounds the processing of a single message.
	HandleTimeout time.Duration

	// AdminIDs are the accounts allowed to run admin commands.
	AdminIDs []int64
}

// DefaultBotConfig returns sensible polling defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		PollLimit:     100,
		PollTimeout:   30,
		HandleTimeout: 10 * time.Second,
	}
}

// BotStats are cumulative counters since Start.
type BotStats struct {
	UpdatesReceived  int64
	MessagesHandled  int64
	CommandsHandled  int64
	XPGrants         int64
	ProcessingErrors int64
	StartedAt        time.Time
}

// Bot is the chat-facing entry point.
type Bot struct {
	config   BotConfig
	source   UpdateSource
	sender   notification.Announcer
	activity *command.ProcessActivityHandler
	router   *Router
	logger   *slog.Logger

	admins map[int64]struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   BotStats
}

// NewBot assembles the bot from its collaborators.
func NewBot(
	config BotConfig,
	source UpdateSource,
	sender notification.Announcer,
	activity *command.ProcessActivityHandler,
	router *Router,
	logger *slog.Logger,
) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[int64]struct{}, len(config.AdminIDs))
	for _, id := range config.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Bot{
		config:   config,
		source:   source,
		sender:   sender,
		activity: activity,
		router:   router,
		logger:   logger,
		admins:   admins,
	}
}

// Start launches the polling loop. It returns immediately; the loop runs
// until Stop or context cancellation.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrBotAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancel = cancel
	b.done = make(chan struct{})
	b.stats = BotStats{StartedAt: time.Now()}
	b.mu.Unlock()

	b.logger.Info("bot started",
		"poll_limit", b.config.PollLimit,
		"poll_timeout_s", b.config.PollTimeout,
		"admins", len(b.admins),
	)

	go b.pollLoop(loopCtx)
	return nil
}

// Stop halts the polling loop and waits for it to drain.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrBotNotRunning
	}
	b.running = false
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	cancel()
	<-done
	b.logger.Info("bot stopped")
	return nil
}

// Stats returns a snapshot of the bot's counters.
func (b *Bot) Stats() BotStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ─────────────────────────────────────────────────────────────────────────────
// POLLING
// ─────────────────────────────────────────────────────────────────────────────

func (b *Bot) pollLoop(ctx context.Context) {
	defer close(b.done)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.source.PollUpdates(ctx, b.config.PollLimit, b.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("polling failed", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, update := range updates {
			b.bump(func(s *BotStats) { s.UpdatesReceived++ })
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update chat.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message

	handleCtx, cancel := context.WithTimeout(ctx, b.config.HandleTimeout)
	defer cancel()

	if err := b.handleMessage(handleCtx, msg); err != nil {
		b.bump(func(s *BotStats) { s.ProcessingErrors++ })
		b.logger.Warn("message handling failed",
			"guild_id", msg.GuildID,
			"member_id", msg.Author.ID,
			"error", err,
		)
	}
}

// handleMessage runs every message through the progression pipeline and,
// for prefixed messages, through the command router.
func (b *Bot) handleMessage(ctx context.Context, msg *chat.Message) error {
	b.bump(func(s *BotStats) { s.MessagesHandled++ })

	outcome, actErr := b.activity.Handle(ctx, command.ProcessActivityCommand{
		Activity: command.Activity{
			GuildID:    shared.GuildID(msg.GuildID),
			MemberID:   shared.MemberID(msg.Author.ID),
			MemberName: msg.Author.Name,
			ChannelID:  shared.ChannelID(msg.ChannelID),
			RoleIDs:    toRoleIDs(msg.RoleIDs),
			IsBot:      msg.Author.IsBot,
		},
		RefreshName: true,
	})
	if actErr == nil && outcome != nil && outcome.Granted {
		b.bump(func(s *BotStats) { s.XPGrants++ })
	}

	var cmdErr error
	if b.router != nil && b.router.IsCommand(msg.Text) && !msg.Author.IsBot && !msg.IsDirect() {
		b.bump(func(s *BotStats) { s.CommandsHandled++ })
		cmdErr = b.router.Dispatch(ctx, msg.Text, b.commandContext(msg))
	}

	if actErr != nil && cmdErr != nil {
		return fmt.Errorf("activity: %v; command: %w", actErr, cmdErr)
	}
	if actErr != nil {
		return actErr
	}
	return cmdErr
}

func (b *Bot) commandContext(msg *chat.Message) *CommandContext {
	guildID := shared.GuildID(msg.GuildID)
	channelID := shared.ChannelID(msg.ChannelID)

	_, isAdmin := b.admins[msg.Author.ID]
	return &CommandContext{
		GuildID:    guildID,
		ChannelID:  channelID,
		MemberID:   shared.MemberID(msg.Author.ID),
		MemberName: msg.Author.Name,
		RoleIDs:    toRoleIDs(msg.RoleIDs),
		IsAdmin:    isAdmin,
		Reply: func(ctx context.Context, text string) error {
			return b.sender.SendMessage(ctx, guildID, channelID, text)
		},
	}
}

func (b *Bot) bump(fn func(*BotStats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

func toRoleIDs(ids []int64) []shared.RoleID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]shared.RoleID, len(ids))
	for i, id := range ids {
		out[i] = shared.RoleID(id)
	}
	return out
}
