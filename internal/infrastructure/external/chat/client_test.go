package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultClientConfig("test-token")
	cfg.BaseURL = server.URL
	cfg.Timeout = 5 * time.Second
	cfg.RetryAttempts = 2
	cfg.RetryDelay = time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(cfg)
}

func writeOK(w http.ResponseWriter, result interface{}) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(apiResponse{OK: true, Result: raw})
}

func writeError(w http.ResponseWriter, code int, description string, retryAfter int) {
	resp := apiResponse{OK: false, ErrorCode: code, Description: description}
	if retryAfter > 0 {
		resp.Parameters = &responseParamters{RetryAfter: retryAfter}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestClient_SendMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeOK(w, Message{MessageID: 7, GuildID: 1, ChannelID: 9, Text: "hello"})
	})

	msg, err := client.SendMessage(context.Background(), 1, 9, "hello")
	require.NoError(t, err)

	assert.Equal(t, int64(7), msg.MessageID)
	assert.Equal(t, "/bot/sendMessage", gotPath)
	assert.Equal(t, "Bot test-token", gotAuth)
	assert.Equal(t, "hello", gotBody["text"])
	assert.Equal(t, float64(1), gotBody["guild_id"])
}

func TestClient_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeError(w, 429, "too many requests", 0)
			return
		}
		writeOK(w, Message{MessageID: 7})
	})

	msg, err := client.SendMessage(context.Background(), 1, 9, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.MessageID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, 400, "bad request", 0)
	})

	_, err := client.SendMessage(context.Background(), 1, 9, "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
}

func TestClient_RetriesServerErrorsUntilExhausted(t *testing.T) {
	var calls atomic.Int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, 500, "internal error", 0)
	})

	_, err := client.SendMessage(context.Background(), 1, 9, "hello")
	require.Error(t, err)
	// RetryAttempts=2 means 3 total attempts.
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_PollUpdatesAdvancesOffset(t *testing.T) {
	var offsets []float64

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		offsets = append(offsets, body["offset"].(float64))

		if len(offsets) == 1 {
			writeOK(w, []Update{
				{UpdateID: 10, Message: &Message{MessageID: 1, GuildID: 1}},
				{UpdateID: 11, Message: &Message{MessageID: 2, GuildID: 1}},
			})
			return
		}
		writeOK(w, []Update{})
	})

	updates, err := client.PollUpdates(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Len(t, updates, 2)

	_, err = client.PollUpdates(context.Background(), 100, 0)
	require.NoError(t, err)

	require.Len(t, offsets, 2)
	assert.Equal(t, float64(0), offsets[0])
	assert.Equal(t, float64(12), offsets[1])
}

func TestClient_GetMeAndHealth(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, User{ID: 99, Name: "guildxp-bot", IsBot: true})
	})

	user, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), user.ID)
	assert.True(t, user.IsBot)
	assert.True(t, client.IsHealthy(context.Background()))
}

func TestClient_GuildMemberRoles(t *testing.T) {
	var gotBody map[string]interface{}
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeOK(w, map[string]bool{"done": true})
	})

	require.NoError(t, client.AddMemberRole(context.Background(), 1, 2, 500))
	assert.Equal(t, float64(500), gotBody["role_id"])

	require.NoError(t, client.RemoveMemberRole(context.Background(), 1, 2, 500))
}

func TestIsUnknownMember(t *testing.T) {
	assert.True(t, IsUnknownMember(&APIError{Code: 404, Description: "Unknown Member"}))
	assert.True(t, IsUnknownMember(&APIError{Code: 404, Description: "member not found"}))
	assert.False(t, IsUnknownMember(&APIError{Code: 404, Description: "unknown channel"}))
	assert.False(t, IsUnknownMember(&APIError{Code: 500, Description: "unknown member"}))
	assert.False(t, IsUnknownMember(errors.New("plain error")))
}

func TestMessage_IsDirect(t *testing.T) {
	assert.True(t, (&Message{GuildID: 0}).IsDirect())
	assert.False(t, (&Message{GuildID: 1}).IsDirect())
}
