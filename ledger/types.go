/*
Package ledger is the payroll ledger: every signed money movement in an
employee's pay history.

KEY CONCEPTS:
  - Movement: one typed, signed, dated entry (accrual, payment, bonus...)
  - Link:     a movement may point at the attendance record that produced it
  - Void:     a movement is never removed; it is flipped to ANULADO and kept
              for audit with a note explaining why

INVARIANTS:
  1. NO DELETE. Corrections are patches or voids, never removals.
  2. At most one ACTIVE movement per attendance record.
  3. Voiding is idempotent: voiding twice leaves the same state as once.
  4. Balances are always recomputed from movements (see balance.go),
     never stored.

SIGN CONVENTION:
  Amounts are signed. PAGO and DESCUENTO always reduce the balance and are
  stored negative whatever sign the caller passes. REINICIO carries zero.
  Everything else is stored as given.

SEE ALSO:
  - ledger.go:  Ledger, the write path with pending/confirm/rollback
  - balance.go: pending balance aggregation
  - store.go:   persistence interface
*/
package ledger

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MOVEMENT TYPES
// =============================================================================

type MovementType string

const (
	TypeAttendance MovementType = "ASISTENCIA" // accrual from a worked shift
	TypePayment    MovementType = "PAGO"       // payment, reduces balance
	TypeDeduction  MovementType = "DESCUENTO"  // deduction, reduces balance
	TypeBonus      MovementType = "BONO"
	TypeAdjustment MovementType = "AJUSTE"
	TypeHoliday    MovementType = "FERIADO"
	TypeReset      MovementType = "REINICIO" // balance reset marker
)

// Types lists every movement type in display order.
var Types = []MovementType{
	TypeAttendance, TypePayment, TypeDeduction, TypeReset, TypeAdjustment, TypeHoliday, TypeBonus,
}

func (t MovementType) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Normalize applies the sign convention of t to amount.
func (t MovementType) Normalize(amount decimal.Decimal) decimal.Decimal {
	switch t {
	case TypePayment, TypeDeduction:
		return amount.Abs().Neg()
	case TypeReset:
		return decimal.Zero
	default:
		return amount
	}
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusVoided Status = "ANULADO"
)

// =============================================================================
// MOVEMENT
// =============================================================================

// Movement is one ledger entry.
type Movement struct {
	ID           string
	EmployeeID   string
	AttendanceID string // empty when not linked to an attendance record
	Type         MovementType
	Amount       decimal.Decimal
	Date         time.Time // calendar day, UTC midnight
	Description  string
	CreatedBy    string
	CreatedAt    time.Time
	Status       Status
	Meta         map[string]string
}

func (m Movement) IsActive() bool { return m.Status == StatusActive }
func (m Movement) IsLinked() bool { return m.AttendanceID != "" }

// clone copies m so callers never share the Meta map with the ledger.
func (m Movement) clone() Movement {
	m.Meta = maps.Clone(m.Meta)
	return m
}

// Patch is a field level update. Nil fields are left alone.
type Patch struct {
	Amount      *decimal.Decimal
	Description *string
	Status      *Status
	Date        *time.Time
	Meta        map[string]string // replaces Meta when non-nil
}

// Apply returns m with the patch applied.
func (p Patch) Apply(m Movement) Movement {
	m = m.clone()
	if p.Amount != nil {
		m.Amount = m.Type.Normalize(*p.Amount)
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Meta != nil {
		m.Meta = maps.Clone(p.Meta)
	}
	return m
}

// SyncState tracks a local mutation against its persistence call.
type SyncState string

const (
	SyncPending    SyncState = "pending"
	SyncConfirmed  SyncState = "confirmed"
	SyncRolledBack SyncState = "rolled_back"
)
