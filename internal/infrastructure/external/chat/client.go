// Package chat implements the chat platform bot API wrapper. It covers the
// calls GuildXP needs: sending messages, managing member roles, listing
// guild members, and long-polling for activity updates.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the chat client.
type ClientConfig struct {
	// Token is the bot API token
	Token string

	// BaseURL is the platform API base URL
	BaseURL string

	// Timeout is the HTTP request timeout. Must exceed the long-poll
	// timeout plus network latency.
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts for failed requests
	RetryAttempts int

	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging of every API call
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:         token,
		BaseURL:       "https://api.chatplatform.example",
		Timeout:       60 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// API TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Update is one long-poll result entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an incoming guild message.
type Message struct {
	MessageID int64   `json:"message_id"`
	GuildID   int64   `json:"guild_id"`
	ChannelID int64   `json:"channel_id"`
	Author    User    `json:"author"`
	RoleIDs   []int64 `json:"role_ids,omitempty"`
	Text      string  `json:"text,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// IsDirect reports whether the message came from a direct conversation
// rather than a guild channel.
func (m *Message) IsDirect() bool {
	return m.GuildID == 0
}

// User is a platform account.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	IsBot bool   `json:"is_bot"`
}

// GuildMember is a member entry returned by the members listing.
type GuildMember struct {
	User    User    `json:"user"`
	RoleIDs []int64 `json:"role_ids,omitempty"`
}

// apiResponse is the envelope every API call returns.
type apiResponse struct {
	OK          bool               `json:"ok"`
	Result      json.RawMessage    `json:"result,omitempty"`
	ErrorCode   int                `json:"error_code,omitempty"`
	Description string             `json:"description,omitempty"`
	Parameters  *responseParamters `json:"parameters,omitempty"`
}

type responseParamters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the chat platform bot API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger

	// Update handling
	updateOffset int64
	updateMu     sync.Mutex
}

// NewClient creates a new chat client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultClientConfig(config.Token).BaseURL
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
	}
}

// SendMessage sends text to a guild channel.
func (c *Client) SendMessage(ctx context.Context, guildID, channelID int64, text string) (*Message, error) {
	body := map[string]interface{}{
		"guild_id":   guildID,
		"channel_id": channelID,
		"text":       text,
	}

	var message Message
	if err := c.callAPI(ctx, "sendMessage", body, &message); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	return &message, nil
}

// AddMemberRole grants a role to a guild member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, memberID, roleID int64) error {
	body := map[string]interface{}{
		"guild_id":  guildID,
		"member_id": memberID,
		"role_id":   roleID,
	}

	if err := c.callAPI(ctx, "addMemberRole", body, nil); err != nil {
		return fmt.Errorf("add member role: %w", err)
	}
	return nil
}

// RemoveMemberRole revokes a role from a guild member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, memberID, roleID int64) error {
	body := map[string]interface{}{
		"guild_id":  guildID,
		"member_id": memberID,
		"role_id":   roleID,
	}

	if err := c.callAPI(ctx, "removeMemberRole", body, nil); err != nil {
		return fmt.Errorf("remove member role: %w", err)
	}
	return nil
}

// GetGuildMembers lists the current members of a guild.
func (c *Client) GetGuildMembers(ctx context.Context, guildID int64) ([]GuildMember, error) {
	body := map[string]interface{}{
		"guild_id": guildID,
	}

	var members []GuildMember
	if err := c.callAPI(ctx, "getGuildMembers", body, &members); err != nil {
		return nil, fmt.Errorf("get guild members: %w", err)
	}
	return members, nil
}

// GetUpdates long-polls for new activity updates.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit int, timeout int) ([]Update, error) {
	body := map[string]interface{}{
		"offset":  offset,
		"limit":   limit,
		"timeout": timeout,
	}

	var updates []Update
	if err := c.callAPI(ctx, "getUpdates", body, &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	return updates, nil
}

// PollUpdates fetches the next batch of updates, tracking the offset so
// each update is delivered once.
func (c *Client) PollUpdates(ctx context.Context, limit int, timeout int) ([]Update, error) {
	c.updateMu.Lock()
	offset := c.updateOffset
	c.updateMu.Unlock()

	updates, err := c.GetUpdates(ctx, offset, limit, timeout)
	if err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		c.updateMu.Lock()
		last := updates[len(updates)-1].UpdateID
		if last >= c.updateOffset {
			c.updateOffset = last + 1
		}
		c.updateMu.Unlock()
	}

	return updates, nil
}

// GetMe returns the bot's own account, useful as a connectivity check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.callAPI(ctx, "getMe", nil, &user); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}
	return &user, nil
}

// IsHealthy reports whether the platform API answers.
func (c *Client) IsHealthy(ctx context.Context) bool {
	_, err := c.GetMe(ctx)
	return err == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API CALL MACHINERY
// ══════════════════════════════════════════════════════════════════════════════

// callAPI performs an API call with retries and backoff.
func (c *Client) callAPI(ctx context.Context, method string, body map[string]interface{}, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doAPICall(ctx, method, body, result)
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return err
		}

		// The platform tells us how long to back off when rate limited
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(apiErr.RetryAfter) * time.Second):
			}
		}
	}

	return fmt.Errorf("api call failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

// doAPICall performs a single API call.
func (c *Client) doAPICall(ctx context.Context, method string, body map[string]interface{}, result interface{}) error {
	url := fmt.Sprintf("%s/bot/%s", c.config.BaseURL, method)

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.config.Token)

	if c.config.Debug {
		c.logger.Debug("chat api call", "method", method)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if !apiResp.OK {
		apiErr := &APIError{
			Code:        apiResp.ErrorCode,
			Description: apiResp.Description,
		}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return apiErr
	}

	if result != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError represents a chat platform API error.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s", e.Code, e.Description)
}

// IsUnknownMember reports whether the error means the member left the guild.
func IsUnknownMember(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 && containsAny(apiErr.Description, []string{
			"unknown member",
			"member not found",
		})
	}
	return false
}

// isRetryableError checks if an error is retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Rate limited - retryable
		if apiErr.Code == 429 {
			return true
		}
		// Server errors - retryable
		if apiErr.Code >= 500 {
			return true
		}
		// Client errors - generally not retryable
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return false
		}
	}

	// Network errors are retryable
	errStr := err.Error()
	return containsAny(errStr, []string{"timeout", "connection refused", "temporary", "reset"})
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
