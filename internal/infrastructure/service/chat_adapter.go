// Package service adapts infrastructure clients to the domain ports the
// application layer depends on.
package service

import (
	"context"
	"log/slog"

	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/internal/infrastructure/external/chat"
	"github.com/guildxp/guildxp/pkg/circuitbreaker"
	"github.com/guildxp/guildxp/pkg/retry"
)

// ChatAdapter adapts the chat.Client to the notification.Announcer and
// award.RoleManager ports, adding rate limiting and a circuit breaker in
// front of every platform call.
type ChatAdapter struct {
	client  *chat.Client
	limiter *chat.RateLimiter
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewChatAdapter creates the adapter with the standard chat API guards.
func NewChatAdapter(client *chat.Client, logger *slog.Logger) *ChatAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatAdapter{
		client:  client,
		limiter: chat.NewRateLimiter(chat.DefaultRateLimiterConfig()),
		breaker: circuitbreaker.ChatAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("chat api circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
		retrier: retry.ChatAPIRetrier(),
		logger:  logger,
	}
}

// SendMessage implements notification.Announcer.
func (a *ChatAdapter) SendMessage(ctx context.Context, guildID shared.GuildID, channelID shared.ChannelID, text string) error {
	return a.call(ctx, func(ctx context.Context) error {
		_, err := a.client.SendMessage(ctx, guildID.Int64(), channelID.Int64(), text)
		return err
	})
}

// GrantRole implements award.RoleManager.
func (a *ChatAdapter) GrantRole(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, roleID shared.RoleID) error {
	return a.call(ctx, func(ctx context.Context) error {
		return a.client.AddMemberRole(ctx, guildID.Int64(), memberID.Int64(), roleID.Int64())
	})
}

// RevokeRole implements award.RoleManager.
func (a *ChatAdapter) RevokeRole(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, roleID shared.RoleID) error {
	return a.call(ctx, func(ctx context.Context) error {
		err := a.client.RemoveMemberRole(ctx, guildID.Int64(), memberID.Int64(), roleID.Int64())
		if chat.IsUnknownMember(err) {
			// Member left the guild; nothing to revoke
			return nil
		}
		return err
	})
}

// GuildMembers lists the current members of a guild.
func (a *ChatAdapter) GuildMembers(ctx context.Context, guildID shared.GuildID) ([]chat.GuildMember, error) {
	var members []chat.GuildMember
	err := a.call(ctx, func(ctx context.Context) error {
		var callErr error
		members, callErr = a.client.GetGuildMembers(ctx, guildID.Int64())
		return callErr
	})
	return members, err
}

// call runs fn behind the rate limiter, circuit breaker, and retrier.
func (a *ChatAdapter) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := a.limiter.Allow(ctx); err != nil {
		return err
	}

	return a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.retrier.Do(ctx, fn)
	})
}
