package ledger

import "context"

// Store persists movements.
//
// There is no delete. Voids and corrections go through UpdateMovement.
// Implementations live in store/memory, store/sqlite and store/postgres.
type Store interface {
	// InsertMovement persists a new movement.
	InsertMovement(ctx context.Context, m Movement) error

	// UpdateMovement overwrites an existing movement by ID.
	// Returns ErrMovementNotFound if the ID is unknown.
	UpdateMovement(ctx context.Context, m Movement) error

	// GetMovement returns nil, nil when the ID is unknown.
	GetMovement(ctx context.Context, id string) (*Movement, error)

	// MovementsByEmployee returns the employee's history, most recently
	// created first.
	MovementsByEmployee(ctx context.Context, employeeID string) ([]Movement, error)

	// ActiveMovementByAttendance returns the ACTIVE movement linked to an
	// attendance record, or nil, nil.
	ActiveMovementByAttendance(ctx context.Context, attendanceID string) (*Movement, error)
}
