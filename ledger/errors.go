package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMovementNotFound is returned when a referenced movement doesn't exist.
	ErrMovementNotFound = errors.New("movement not found")

	// ErrInvalidMovement is returned for a movement missing required fields.
	ErrInvalidMovement = errors.New("invalid movement")

	// ErrDuplicateLink is returned when an attendance record already has an
	// active movement.
	ErrDuplicateLink = errors.New("attendance already has an active movement")

	// ErrPersistence wraps any failure of the underlying store. The local
	// change has been rolled back when this is returned.
	ErrPersistence = errors.New("ledger persistence failed")

	// ErrConcurrentModification is returned by stores that detect a lost
	// update or a busy database. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// PersistenceError reports which write failed.
type PersistenceError struct {
	Op         string // "insert" or "update"
	MovementID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.MovementID, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMovement) ||
		errors.Is(err, ErrDuplicateLink)
}

// IsNotFound returns true if the error indicates a missing movement.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMovementNotFound)
}
