package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_DispatchParsesCommandAndArgs(t *testing.T) {
	r := NewRouter("!", discardLogger())

	var got *CommandContext
	r.Register("rank", func(ctx context.Context, cmd *CommandContext) error {
		got = cmd
		return nil
	})

	cmdCtx := &CommandContext{GuildID: 1, MemberID: 2}
	require.NoError(t, r.Dispatch(context.Background(), "!rank @alice extra", cmdCtx))

	require.NotNil(t, got)
	assert.Equal(t, []string{"@alice", "extra"}, got.Args)
	assert.Equal(t, "@alice", got.Arg(0))
	assert.Equal(t, "", got.Arg(5))
}

func TestRouter_CommandWordIsCaseInsensitive(t *testing.T) {
	r := NewRouter("!", discardLogger())

	calls := 0
	r.Register("Rank", func(ctx context.Context, cmd *CommandContext) error {
		calls++
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), "!RANK", &CommandContext{}))
	assert.Equal(t, 1, calls)
}

func TestRouter_IgnoresNonCommandsAndUnknownCommands(t *testing.T) {
	r := NewRouter("!", discardLogger())

	calls := 0
	r.Register("rank", func(ctx context.Context, cmd *CommandContext) error {
		calls++
		return nil
	})

	assert.NoError(t, r.Dispatch(context.Background(), "hello there", &CommandContext{}))
	assert.NoError(t, r.Dispatch(context.Background(), "!unknown", &CommandContext{}))
	assert.NoError(t, r.Dispatch(context.Background(), "!", &CommandContext{}))
	assert.Equal(t, 0, calls)
}

func TestRouter_AdminGating(t *testing.T) {
	r := NewRouter("!", discardLogger())

	calls := 0
	r.RegisterAdmin("addxp", func(ctx context.Context, cmd *CommandContext) error {
		calls++
		return nil
	})

	// Silently dropped for non-admins.
	require.NoError(t, r.Dispatch(context.Background(), "!addxp @alice 50", &CommandContext{}))
	assert.Equal(t, 0, calls)

	require.NoError(t, r.Dispatch(context.Background(), "!addxp @alice 50", &CommandContext{IsAdmin: true}))
	assert.Equal(t, 1, calls)
}

func TestRouter_HandlerErrorIsWrappedWithCommandWord(t *testing.T) {
	r := NewRouter("!", discardLogger())

	boom := errors.New("boom")
	r.Register("rank", func(ctx context.Context, cmd *CommandContext) error {
		return boom
	})

	err := r.Dispatch(context.Background(), "!rank", &CommandContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "command rank")
}

func TestRouter_MiddlewaresRunInRegistrationOrder(t *testing.T) {
	r := NewRouter("!", discardLogger())

	var order []string
	mw := func(name string) Middleware {
		return func(next CommandFunc) CommandFunc {
			return func(ctx context.Context, cmd *CommandContext) error {
				order = append(order, name)
				return next(ctx, cmd)
			}
		}
	}
	r.Use(mw("outer"))
	r.Use(mw("inner"))
	r.Register("rank", func(ctx context.Context, cmd *CommandContext) error {
		order = append(order, "handler")
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), "!rank", &CommandContext{}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecoveryMiddleware_TurnsPanicIntoError(t *testing.T) {
	r := NewRouter("!", discardLogger())
	r.Use(RecoveryMiddleware(discardLogger()))
	r.Register("rank", func(ctx context.Context, cmd *CommandContext) error {
		panic("boom")
	})

	err := r.Dispatch(context.Background(), "!rank", &CommandContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestThrottleMiddleware_DropsRapidRepeats(t *testing.T) {
	r := NewRouter("!", discardLogger())
	r.Use(ThrottleMiddleware(time.Minute))

	calls := 0
	r.Register("rank", func(ctx context.Context, cmd *CommandContext) error {
		calls++
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), "!rank", &CommandContext{MemberID: 2}))
	require.NoError(t, r.Dispatch(context.Background(), "!rank", &CommandContext{MemberID: 2}))
	assert.Equal(t, 1, calls)

	// Another member is throttled independently.
	require.NoError(t, r.Dispatch(context.Background(), "!rank", &CommandContext{MemberID: 3}))
	assert.Equal(t, 2, calls)
}

func TestRouter_IsCommand(t *testing.T) {
	r := NewRouter("!", discardLogger())
	assert.True(t, r.IsCommand("!rank"))
	assert.False(t, r.IsCommand("!"))
	assert.False(t, r.IsCommand("rank"))
}
