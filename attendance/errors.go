package attendance

import "errors"

var (
	// Validation errors, rejected before anything is computed.
	ErrEmployeeRequired = errors.New("employee is required")
	ErrDateRequired     = errors.New("date is required")
	ErrEmptyShift       = errors.New("check-in and check-out describe an empty shift")
	ErrInvalidEmployee  = errors.New("invalid employee")

	ErrEmployeeNotFound = errors.New("employee not found")
	ErrRecordNotFound   = errors.New("attendance record not found")
)

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmployeeRequired) ||
		errors.Is(err, ErrDateRequired) ||
		errors.Is(err, ErrEmptyShift) ||
		errors.Is(err, ErrInvalidEmployee)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
