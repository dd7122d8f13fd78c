package attendance

import (
	"context"
	"time"
)

// Store persists attendance records.
type Store interface {
	InsertRecord(ctx context.Context, r Record) error
	// UpdateRecord returns ErrRecordNotFound for an unknown ID.
	UpdateRecord(ctx context.Context, r Record) error
	// DeleteRecord returns ErrRecordNotFound for an unknown ID.
	DeleteRecord(ctx context.Context, id string) error
	// GetRecord returns nil, nil for an unknown ID.
	GetRecord(ctx context.Context, id string) (*Record, error)
	// ListRecords returns matching records ordered by date, then check-in.
	ListRecords(ctx context.Context, f Filter) ([]Record, error)
}

// Filter narrows ListRecords. Zero values match everything.
type Filter struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r Record) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	return true
}

// EmployeeStore persists employees.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	// GetEmployee returns nil, nil for an unknown ID.
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// SanctionStore persists sanctions.
type SanctionStore interface {
	InsertSanction(ctx context.Context, s Sanction) error
	SanctionsByEmployee(ctx context.Context, employeeID string) ([]Sanction, error)
}

// TxRunner runs fn inside one database transaction carried by the
// context passed to fn. Returning an error rolls everything back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
