package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PENDING BALANCE - the one aggregation rule every screen uses
// =============================================================================

// Charge is an amount subtracted from the balance outside the ledger,
// such as an approved sanction.
type Charge struct {
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Balance is the pending balance of one employee with its parts.
type Balance struct {
	EmployeeID  string
	Accrued     decimal.Decimal // ASISTENCIA + FERIADO
	Bonuses     decimal.Decimal // BONO
	Adjustments decimal.Decimal // AJUSTE
	Payments    decimal.Decimal // PAGO (negative)
	Deductions  decimal.Decimal // DESCUENTO (negative)
	Charges     decimal.Decimal // sanctions, subtracted
	Pending     decimal.Decimal
	Since       *time.Time // creation time of the last reset, if any
	Counted     int        // movements included
}

// Aggregate computes the pending balance from a movement history and
// external charges.
//
// Only ACTIVE movements count. The most recent active REINICIO marker
// closes the books: movements and charges created strictly before it are
// ignored, and the marker itself carries no amount. Charges are subtracted by
// absolute value.
func Aggregate(employeeID string, movements []Movement, charges []Charge) Balance {
	b := Balance{
		EmployeeID:  employeeID,
		Accrued:     decimal.Zero,
		Bonuses:     decimal.Zero,
		Adjustments: decimal.Zero,
		Payments:    decimal.Zero,
		Deductions:  decimal.Zero,
		Charges:     decimal.Zero,
		Pending:     decimal.Zero,
	}

	for _, m := range movements {
		if m.Type == TypeReset && m.IsActive() && (b.Since == nil || m.CreatedAt.After(*b.Since)) {
			at := m.CreatedAt
			b.Since = &at
		}
	}
	// Same-instant ties count: stores that truncate timestamps can give a
	// movement written right after the reset the marker's exact time.
	counts := func(created time.Time) bool {
		return b.Since == nil || !created.Before(*b.Since)
	}

	for _, m := range movements {
		if !m.IsActive() || m.Type == TypeReset || !counts(m.CreatedAt) {
			continue
		}
		switch m.Type {
		case TypeAttendance, TypeHoliday:
			b.Accrued = b.Accrued.Add(m.Amount)
		case TypeBonus:
			b.Bonuses = b.Bonuses.Add(m.Amount)
		case TypeAdjustment:
			b.Adjustments = b.Adjustments.Add(m.Amount)
		case TypePayment:
			b.Payments = b.Payments.Add(m.Amount)
		case TypeDeduction:
			b.Deductions = b.Deductions.Add(m.Amount)
		}
		b.Pending = b.Pending.Add(m.Amount)
		b.Counted++
	}

	for _, c := range charges {
		if !counts(c.CreatedAt) {
			continue
		}
		b.Charges = b.Charges.Add(c.Amount.Abs())
	}
	b.Pending = b.Pending.Sub(b.Charges)
	return b
}
