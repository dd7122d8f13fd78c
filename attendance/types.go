/*
Package attendance records worked shifts and keeps each one tied to its
payroll consequence.

PURPOSE:
  A shift is logged with a date and check-in/check-out times. It is priced
  with the accrual calculator and, for employees whose pay accrues, becomes
  exactly one ASISTENCIA movement in the payroll ledger linked back to the
  record. Editing the record patches that movement; deleting it voids the
  movement. The link is never silently lost.

LIFECYCLE:
  SCHEDULED  the shift's date is in the future
  CONFIRMED  the date is today or past

  Records are created in whichever status their date implies. A scheduled
  record is promoted by ConfirmElapsed when its date arrives; promotion
  does not create a ledger movement (see Service.Unlinked).

SIDE EFFECTS OF RECORDING:
  - ASISTENCIA movement: pay modality accrues AND status is CONFIRMED
  - Late-arrival sanction: status is CONFIRMED AND the check-in is late
    against the employee's official start (accrual.Lateness)

SEE ALSO:
  - service.go: Record, Update, Delete and friends
  - sweep.go:   ConfirmElapsed
  - accrual:    pricing
  - ledger:     movements and pending balance
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/accrual"
)

// SystemActor is the creator recorded on automatic side effects.
const SystemActor = "SYSTEM"

// =============================================================================
// EMPLOYEE (the subset the engine needs)
// =============================================================================

// PayModality says whether shifts accrue to the ledger.
type PayModality string

const (
	ModalityAccrual PayModality = "accrual"  // shifts accrue to the ledger
	ModalitySameDay PayModality = "same_day" // paid at the end of the shift, no accrual
)

type Employee struct {
	ID            string
	Name          string
	Salary        string // raw, as entered; may be malformed
	SalaryPeriod  accrual.SalaryPeriod
	OfficialStart string // HH:mm
	OfficialEnd   string // HH:mm
	PayModality   PayModality
	Active        bool
}

// Accrues reports whether the employee's shifts produce ledger movements.
func (e Employee) Accrues() bool {
	return e.PayModality != ModalitySameDay
}

// =============================================================================
// ATTENDANCE RECORD
// =============================================================================

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
)

// Record is one logged shift.
//
// OvertimeHours is the time worked beyond the official schedule.
// OvertimeAmount is the full accrual amount of the shift; the persisted
// field name is historical.
type Record struct {
	ID             string
	EmployeeID     string
	Date           time.Time // calendar day, UTC midnight
	CheckIn        string    // HH:mm
	CheckOut       string    // HH:mm
	OvertimeHours  decimal.Decimal
	OvertimeAmount decimal.Decimal
	Reason         string
	Paid           bool
	IsHoliday      bool
	CreatedBy      string
	Status         Status
	CreatedAt      time.Time
}

// =============================================================================
// SANCTIONS (owned elsewhere; created here as a side effect)
// =============================================================================

type SanctionType string

const SanctionLateArrival SanctionType = "LLEGADA_TARDE"

type Sanction struct {
	ID           string
	EmployeeID   string
	AttendanceID string
	Type         SanctionType
	Amount       decimal.Decimal
	Date         time.Time
	Description  string
	CreatedBy    string
	Approved     bool
	CreatedAt    time.Time
}
