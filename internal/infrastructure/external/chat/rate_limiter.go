package chat

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// Keeps outgoing calls within the platform's global rate limit so the bot
// never gets throttled during announcement bursts.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig tunes the token bucket.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate; tokens refill at this speed.
	RequestsPerSecond float64

	// BurstSize caps how many requests can fire back to back.
	BurstSize int

	// MinInterval forces spacing between requests even when tokens remain.
	MinInterval time.Duration

	// WaitTimeout bounds how long Allow blocks for a token.
	WaitTimeout time.Duration

	// RetryAfter is the fallback cooldown applied on a rate limit response.
	RetryAfter time.Duration
}

// DefaultRateLimiterConfig returns defaults matching the platform's
// documented global limit of 30 requests per second per bot.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 30.0,
		BurstSize:         10,
		WaitTimeout:       30 * time.Second,
		RetryAfter:        60 * time.Second,
	}
}

// ConservativeRateLimiterConfig stays well under the platform limit.
// Use for bots sharing a token across processes.
func ConservativeRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10.0,
		BurstSize:         5,
		MinInterval:       50 * time.Millisecond,
		WaitTimeout:       60 * time.Second,
		RetryAfter:        120 * time.Second,
	}
}

// RateLimiter is a token bucket with adaptive backoff. When the platform
// reports a rate limit hit the limiter drains its bucket and permanently
// slows its refill rate.
type RateLimiter struct {
	mu sync.Mutex

	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	refilledAt time.Time

	minInterval time.Duration
	lastRequest time.Time

	waitTimeout time.Duration
	retryAfter  time.Duration
	waitStreak  int // consecutive denied acquisitions, drives backoff
}

// NewRateLimiter creates a limiter with a full bucket, so the first
// BurstSize requests pass immediately.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:      float64(config.BurstSize),
		capacity:    float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		refilledAt:  now,
		minInterval: config.MinInterval,
		lastRequest: now.Add(-config.MinInterval),
		waitTimeout: config.WaitTimeout,
		retryAfter:  config.RetryAfter,
	}
}

// RateLimitError reports a denied request together with the suggested wait.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Is matches any *RateLimitError, so errors.Is(err, ErrRateLimitExceeded)
// works regardless of the embedded wait time.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// ErrRateLimitExceeded is returned when no token arrives within WaitTimeout.
var ErrRateLimitExceeded = &RateLimitError{Message: "rate limit exceeded"}

// Allow blocks until a token is available, the context is done, or the
// configured wait timeout would be exceeded.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wait, ok := rl.take()
		if ok {
			return nil
		}

		if time.Now().Add(wait).After(deadline) {
			return &RateLimitError{
				RetryAfter: wait,
				Message:    "rate limit exceeded, retry after " + wait.String(),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// TryAllow reports whether a request may proceed right now.
func (rl *RateLimiter) TryAllow() bool {
	_, ok := rl.take()
	return ok
}

// take consumes a token if one is available. On denial it returns how long
// the caller should wait before trying again.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if since := time.Since(rl.lastRequest); since < rl.minInterval {
		return rl.minInterval - since, false
	}

	if rl.tokens < 1.0 {
		need := 1.0 - rl.tokens
		wait := time.Duration(need / rl.refillRate * float64(time.Second))

		// Back off harder on repeated denials, capped at 32x.
		if rl.waitStreak > 0 {
			wait *= time.Duration(1 << uint(min(rl.waitStreak, 5)))
		}
		rl.waitStreak++

		return wait, false
	}

	rl.tokens--
	rl.lastRequest = time.Now()
	rl.waitStreak = 0

	return 0, true
}

// refill credits tokens for time elapsed since the last refill.
// Caller holds rl.mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.refilledAt).Seconds()
	if elapsed <= 0 {
		return
	}

	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.refilledAt = now
}

// RecordRateLimitHit drains the bucket after the API reported a 429 and
// reduces the refill rate by 20% to stay under the limit going forward.
func (rl *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = 0
	if retryAfter > 0 {
		rl.retryAfter = retryAfter
	}
	rl.refillRate *= 0.8
	rl.lastRequest = time.Now()
	rl.waitStreak++
}

// Reset restores a full bucket and clears backoff state.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.capacity
	rl.refilledAt = time.Now()
	rl.lastRequest = time.Now().Add(-rl.minInterval)
	rl.waitStreak = 0
}

// RateLimiterStatus is a point-in-time view of the limiter.
type RateLimiterStatus struct {
	AvailableTokens  float64
	MaxTokens        float64
	RefillRate       float64
	ConsecutiveWaits int
}

// Status refills and reports the current bucket state.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()

	return RateLimiterStatus{
		AvailableTokens:  rl.tokens,
		MaxTokens:        rl.capacity,
		RefillRate:       rl.refillRate,
		ConsecutiveWaits: rl.waitStreak,
	}
}
