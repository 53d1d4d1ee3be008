/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is; structured errors unwrap to a sentinel.

ERROR CATEGORIES:
  1. Input errors - invalid date, malformed events or tank readings
  2. Configuration errors - plant registry problems
  3. Lookup errors - a stored ledger row that does not exist

NOT ERRORS:
  - A day with no events, or a tank with no history (resolves to zero)
  - Zero expected volume in a wastage percentage (guarded to zero)
  - A tolerance breach (reported as status "warning")

SEE ALSO:
  - ledger.go: Fails fast on ErrInvalidDate
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package spirit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned before any read when a date is missing or unparseable.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidTankState is returned when a reading breaks a physical invariant.
	ErrInvalidTankState = errors.New("invalid tank state")

	// ErrInvalidEvent is returned when an upstream event is malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnknownTank is returned when a tank is not in the plant registry.
	ErrUnknownTank = errors.New("unknown tank")

	// ErrInvalidPlant is returned when the plant configuration is unusable.
	ErrInvalidPlant = errors.New("invalid plant configuration")

	// ErrInvalidMode is returned for an unknown resolve mode.
	ErrInvalidMode = errors.New("invalid resolve mode")

	// ErrLedgerNotFound is returned when no ledger row is stored for a date.
	ErrLedgerNotFound = errors.New("ledger row not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidValueError names the offending field.
type InvalidValueError struct {
	Field  string
	Reason string
	Kind   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidTankState) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrUnknownTank) ||
		errors.Is(err, ErrInvalidMode)
}

// IsNotFound returns true if the error indicates a missing stored row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLedgerNotFound)
}
