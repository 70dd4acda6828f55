package progression

import (
	"errors"
	"sync"
	"time"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COOLDOWN GATE
// Fixed-window limiter deciding whether an activity event is eligible to
// award XP. Each member may trigger up to `rate` eligible events per `per`
// window; the window opens at the first event and resets `per` after it,
// not on a rolling basis.
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidCooldown is returned for non-positive rate or period values.
var ErrInvalidCooldown = errors.New("progression: cooldown rate and period must be greater than zero")

// windowState tracks one member's current cooldown window. State is
// in-memory only; after a restart a member may get one extra grant, which is
// an accepted trade-off.
type windowState struct {
	mu       sync.Mutex
	windowAt time.Time
	count    int
}

// Gate implements the per-member fixed-window cooldown.
type Gate struct {
	rate int
	per  time.Duration

	states sync.Map // map[string]*windowState, keyed by RecordKey.String()
	now    func() time.Time

	cleanupInterval time.Duration
	closeCh         chan struct{}
	closeOnce       sync.Once
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithClock overrides the gate's time source. Used in tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithCleanupInterval overrides how often expired window states are swept.
func WithCleanupInterval(d time.Duration) GateOption {
	return func(g *Gate) { g.cleanupInterval = d }
}

// NewGate creates a cooldown gate allowing rate eligible events per window.
func NewGate(rate int, per time.Duration, opts ...GateOption) (*Gate, error) {
	if rate <= 0 || per <= 0 {
		return nil, ErrInvalidCooldown
	}

	g := &Gate{
		rate:            rate,
		per:             per,
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		closeCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	go g.cleanupLoop()

	return g, nil
}

// Rate returns the number of eligible events allowed per window.
func (g *Gate) Rate() int {
	return g.rate
}

// Per returns the window duration.
func (g *Gate) Per() time.Duration {
	return g.per
}

// Allow reports whether an activity event for the given record key is
// eligible right now, and records it when it is. Once the in-window counter
// reaches the rate, further events are ineligible until the window expires.
func (g *Gate) Allow(key shared.RecordKey) bool {
	state := g.getState(key)

	state.mu.Lock()
	defer state.mu.Unlock()

	now := g.now()

	if state.windowAt.IsZero() || now.Sub(state.windowAt) >= g.per {
		// New window, first event always counts.
		state.windowAt = now
		state.count = 1
		return true
	}

	if state.count < g.rate {
		state.count++
		return true
	}

	return false
}

// Reset clears the cooldown state for one record key.
func (g *Gate) Reset(key shared.RecordKey) {
	g.states.Delete(key.String())
}

// Close stops the background cleanup goroutine.
func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		close(g.closeCh)
	})
}

// getState returns the window state for a key, creating one if needed.
func (g *Gate) getState(key shared.RecordKey) *windowState {
	if val, ok := g.states.Load(key.String()); ok {
		return val.(*windowState)
	}

	actual, _ := g.states.LoadOrStore(key.String(), &windowState{})
	return actual.(*windowState)
}

// cleanupLoop periodically drops window states that have expired, so the map
// does not grow without bound in large guilds.
func (g *Gate) cleanupLoop() {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.closeCh:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep removes expired window states.
func (g *Gate) sweep() {
	now := g.now()
	g.states.Range(func(key, val any) bool {
		state := val.(*windowState)
		state.mu.Lock()
		expired := !state.windowAt.IsZero() && now.Sub(state.windowAt) >= g.per
		state.mu.Unlock()
		if expired {
			g.states.Delete(key)
		}
		return true
	})
}
