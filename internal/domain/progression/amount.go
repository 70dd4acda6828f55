package progression

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// Bounds for a single per-activity base award.
const (
	MinAwardXP = 1
	MaxAwardXP = 25
)

// MaxBoostedAwardXP caps the final award after bonus composition. A single
// activity event never grants more than this, no matter the bonus.
const MaxBoostedAwardXP = 75

// MaxBonusFactor is the largest allowed multiplier for a multiplicative bonus.
const MaxBonusFactor = 3

var (
	// ErrInvalidAmount is returned when a base award resolves outside [1, 25].
	ErrInvalidAmount = errors.New("progression: award amount must be between 1 and 25")

	// ErrEmptyBonusRoles is returned when a bonus is built without role IDs.
	ErrEmptyBonusRoles = errors.New("progression: bonus role IDs cannot be empty")

	// ErrBonusFactorTooLarge is returned when a multiplicative bonus exceeds MaxBonusFactor.
	ErrBonusFactorTooLarge = errors.New("progression: multiplicative bonus factor cannot exceed 3")
)

// ══════════════════════════════════════════════════════════════════════════════
// AMOUNT
// ══════════════════════════════════════════════════════════════════════════════

// Amount is the base XP awarded per eligible activity event: either a fixed
// value or an inclusive range resolved by a uniform random draw. The zero
// value is not valid; construct via Fixed or Range.
type Amount struct {
	lo, hi  int
	isRange bool
}

// Fixed returns an Amount that always resolves to n.
func Fixed(n int) Amount {
	return Amount{lo: n, hi: n}
}

// Range returns an Amount drawn uniformly from [lo, hi] inclusive. The bounds
// need not be pre-ordered.
func Range(lo, hi int) Amount {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Amount{lo: lo, hi: hi, isRange: true}
}

// DefaultAmount is the conventional per-message award range.
func DefaultAmount() Amount {
	return Range(15, 25)
}

// IsRange reports whether the amount is a random range.
func (a Amount) IsRange() bool {
	return a.isRange
}

// Resolve validates the amount and produces the concrete base award. Resolved
// once at the call boundary; everything downstream works with a plain int.
func (a Amount) Resolve() (int, error) {
	if a.lo < MinAwardXP || a.hi > MaxAwardXP {
		return 0, fmt.Errorf("%w: got [%d, %d]", ErrInvalidAmount, a.lo, a.hi)
	}
	if !a.isRange {
		return a.lo, nil
	}
	return a.lo + rand.IntN(a.hi-a.lo+1), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BONUS
// ══════════════════════════════════════════════════════════════════════════════

// Bonus describes extra XP for members holding certain roles. Multiply mode
// scales the base award by Amount (x2, x1.5); additive mode adds Amount on
// top. At most one bonus applies per activity event.
type Bonus struct {
	RoleIDs  []shared.RoleID
	Amount   float64
	Multiply bool
}

// NewBonus validates and creates an additive bonus rule awarding amount extra
// XP on top of the base award.
func NewBonus(roleIDs []shared.RoleID, amount int) (*Bonus, error) {
	if len(roleIDs) == 0 {
		return nil, ErrEmptyBonusRoles
	}
	return &Bonus{RoleIDs: roleIDs, Amount: float64(amount)}, nil
}

// NewMultiplierBonus validates and creates a multiplicative bonus rule
// scaling the base award by factor. The factor may be fractional.
func NewMultiplierBonus(roleIDs []shared.RoleID, factor float64) (*Bonus, error) {
	if len(roleIDs) == 0 {
		return nil, ErrEmptyBonusRoles
	}
	if factor > MaxBonusFactor {
		return nil, fmt.Errorf("%w: got %g", ErrBonusFactorTooLarge, factor)
	}
	return &Bonus{RoleIDs: roleIDs, Amount: factor, Multiply: true}, nil
}

// appliesTo reports whether the member's roles intersect the bonus roles.
func (b *Bonus) appliesTo(memberRoles []shared.RoleID) bool {
	for _, want := range b.RoleIDs {
		for _, have := range memberRoles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// ComputeAward composes the final XP delta for an eligible activity event.
// The bonus is applied only when the member holds at least one of its roles.
// Multiplicative results round to the nearest integer, and the final award is
// capped at MaxBoostedAwardXP.
func ComputeAward(base int, memberRoles []shared.RoleID, bonus *Bonus) int {
	amount := base
	if bonus != nil && bonus.appliesTo(memberRoles) {
		if bonus.Multiply {
			amount = int(math.Round(float64(base) * bonus.Amount))
		} else {
			amount = base + int(math.Round(bonus.Amount))
		}
		if amount > MaxBoostedAwardXP {
			amount = MaxBoostedAwardXP
		}
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}
