// Package bot implements the chat-facing side of GuildXP: the polling
// loop that turns guild messages into XP activity, and the command router
// for member and admin commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// CommandContext carries everything a command handler needs about the
// invocation.
type CommandContext struct {
	GuildID    shared.GuildID
	ChannelID  shared.ChannelID
	MemberID   shared.MemberID
	MemberName string
	RoleIDs    []shared.RoleID

	// Args are the whitespace-split tokens after the command word.
	Args []string

	// IsAdmin marks invocations by configured admin accounts.
	IsAdmin bool

	// Reply sends text back to the channel the command came from.
	Reply func(ctx context.Context, text string) error
}

// Arg returns the i-th argument or an empty string.
func (c *CommandContext) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// CommandFunc handles one parsed command.
type CommandFunc func(ctx context.Context, cmd *CommandContext) error

// Middleware wraps command execution.
type Middleware func(next CommandFunc) CommandFunc

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// registration binds a command word to its handler.
type registration struct {
	fn        CommandFunc
	adminOnly bool
}

// Router parses command messages and dispatches them to handlers.
type Router struct {
	mu          sync.RWMutex
	prefix      string
	commands    map[string]registration
	middlewares []Middleware
	logger      *slog.Logger
}

// NewRouter creates a router. prefix is the command sigil, e.g. "!".
func NewRouter(prefix string, logger *slog.Logger) *Router {
	if prefix == "" {
		prefix = "!"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		prefix:   prefix,
		commands: make(map[string]registration),
		logger:   logger,
	}
}

// Use appends a middleware. Middlewares run in registration order.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Register binds a command word to a handler.
func (r *Router) Register(command string, fn CommandFunc) {
	r.register(command, fn, false)
}

// RegisterAdmin binds an admin-only command word to a handler.
func (r *Router) RegisterAdmin(command string, fn CommandFunc) {
	r.register(command, fn, true)
}

func (r *Router) register(command string, fn CommandFunc, adminOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(command)] = registration{fn: fn, adminOnly: adminOnly}
}

// Commands returns the registered command words.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// IsCommand reports whether text looks like a command invocation.
func (r *Router) IsCommand(text string) bool {
	return strings.HasPrefix(text, r.prefix) && len(text) > len(r.prefix)
}

// Dispatch parses text and runs the matching handler. Unknown commands are
// ignored so the bot stays quiet in channels full of other bots' sigils.
func (r *Router) Dispatch(ctx context.Context, text string, cmdCtx *CommandContext) error {
	if !r.IsCommand(text) {
		return nil
	}

	fields := strings.Fields(text[len(r.prefix):])
	if len(fields) == 0 {
		return nil
	}
	word := strings.ToLower(fields[0])
	cmdCtx.Args = fields[1:]

	r.mu.RLock()
	reg, ok := r.commands[word]
	middlewares := r.middlewares
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	if reg.adminOnly && !cmdCtx.IsAdmin {
		r.logger.Debug("admin command rejected",
			"command", word,
			"member_id", cmdCtx.MemberID.Int64(),
		)
		return nil
	}

	handler := reg.fn
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	if err := handler(ctx, cmdCtx); err != nil {
		return fmt.Errorf("command %s: %w", word, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryMiddleware converts handler panics into errors.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *CommandContext) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("command handler panic recovered",
						"panic", rec,
						"member_id", cmd.MemberID.Int64(),
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("command handler panic: %v", rec)
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// LoggingMiddleware logs command execution, failures at warn level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *CommandContext) error {
			start := time.Now()
			err := next(ctx, cmd)
			if err != nil {
				logger.Warn("command failed",
					"guild_id", cmd.GuildID.Int64(),
					"member_id", cmd.MemberID.Int64(),
					"duration", time.Since(start),
					"error", err,
				)
			} else {
				logger.Debug("command handled",
					"guild_id", cmd.GuildID.Int64(),
					"member_id", cmd.MemberID.Int64(),
					"duration", time.Since(start),
				)
			}
			return err
		}
	}
}

// ThrottleMiddleware limits each member to one command per window. Excess
// invocations are dropped silently.
func ThrottleMiddleware(window time.Duration) Middleware {
	var mu sync.Mutex
	last := make(map[shared.MemberID]time.Time)

	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *CommandContext) error {
			mu.Lock()
			now := time.Now()
			if prev, ok := last[cmd.MemberID]; ok && now.Sub(prev) < window {
				mu.Unlock()
				return nil
			}
			last[cmd.MemberID] = now
			mu.Unlock()

			return next(ctx, cmd)
		}
	}
}
