// Package shared contains the identifier types, domain events, and
// cross-cutting errors used by every domain package. It has zero external
// dependencies.
package shared

import "errors"

var (
	// ErrValidation is the base of every input-validation failure.
	// Packages wrap it with fmt.Errorf("%w: ...") so callers can match
	// the whole class with errors.Is.
	ErrValidation = errors.New("validation error")

	// ErrNotConfirmed guards destructive operations. Guild-wide resets
	// and wipes refuse to run unless the caller confirms intent.
	ErrNotConfirmed = errors.New("operation not confirmed")
)

// IsValidation reports whether err is an input-validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotConfirmed reports whether err is a destructive-operation guard refusal.
func IsNotConfirmed(err error) bool {
	return errors.Is(err, ErrNotConfirmed)
}
