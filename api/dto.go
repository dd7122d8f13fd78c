/*
dto.go - JSON shapes for the payroll API

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request bodies from clients

MONEY:
  Amounts go out as decimal strings ("12500.00") next to a display
  string in the configured locale ("$ 12.500"). Amounts coming in may
  be JSON numbers or strings; strings are read with the configured
  locale, so "$ 2.200,50" and 2200.5 are the same value.

DATES:
  Calendar days are "YYYY-MM-DD". Timestamps are RFC 3339.

SEE ALSO:
  - handlers.go: uses these types
  - locale/: number and date formatting rules
*/
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/locale"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Salary        string `json:"salary"`
	SalaryPeriod  string `json:"salary_period"`
	OfficialStart string `json:"official_start"`
	OfficialEnd   string `json:"official_end"`
	PayModality   string `json:"pay_modality"`
	Active        bool   `json:"active"`
}

// CreateEmployeeRequest accepts salary as a number or a locale string.
type CreateEmployeeRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Salary        json.RawMessage `json:"salary"`
	SalaryPeriod  string          `json:"salary_period"`
	OfficialStart string          `json:"official_start"`
	OfficialEnd   string          `json:"official_end"`
	PayModality   string          `json:"pay_modality"`
	Active        *bool           `json:"active"`
}

func toEmployeeDTO(e attendance.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            e.ID,
		Name:          e.Name,
		Salary:        e.Salary,
		SalaryPeriod:  string(e.SalaryPeriod),
		OfficialStart: e.OfficialStart,
		OfficialEnd:   e.OfficialEnd,
		PayModality:   string(e.PayModality),
		Active:        e.Active,
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceDTO struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	Date           string          `json:"date"`
	CheckIn        string          `json:"check_in"`
	CheckOut       string          `json:"check_out"`
	OvertimeHours  decimal.Decimal `json:"overtime_hours"`
	OvertimeAmount decimal.Decimal `json:"overtime_amount"`
	Reason         string          `json:"reason,omitempty"`
	Paid           bool            `json:"paid"`
	IsHoliday      bool            `json:"is_holiday"`
	CreatedBy      string          `json:"created_by"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
}

// AttendanceRequest logs a shift. Also the body of the preview endpoint.
type AttendanceRequest struct {
	EmployeeID     string          `json:"employee_id"`
	Date           string          `json:"date"`
	CheckIn        string          `json:"check_in"`
	CheckOut       string          `json:"check_out"`
	Reason         string          `json:"reason"`
	IsHoliday      bool            `json:"is_holiday"`
	CreatedBy      string          `json:"created_by"`
	HolidayFactor  json.RawMessage `json:"holiday_factor,omitempty"`
	OvertimeFactor json.RawMessage `json:"overtime_factor,omitempty"`
}

// UpdateAttendanceRequest edits a shift. Omitted fields are kept.
type UpdateAttendanceRequest struct {
	Date      *string `json:"date"`
	CheckIn   *string `json:"check_in"`
	CheckOut  *string `json:"check_out"`
	Reason    *string `json:"reason"`
	IsHoliday *bool   `json:"is_holiday"`
	Paid      *bool   `json:"paid"`

	HolidayFactor  json.RawMessage `json:"holiday_factor,omitempty"`
	OvertimeFactor json.RawMessage `json:"overtime_factor,omitempty"`
}

// OutcomeDTO is the result of a create or update.
type OutcomeDTO struct {
	Attendance AttendanceDTO  `json:"attendance"`
	Accrual    accrual.Result `json:"accrual"`
	Movement   *MovementDTO   `json:"movement,omitempty"`
	Sanction   *SanctionDTO   `json:"sanction,omitempty"`
}

type SanctionDTO struct {
	ID           string          `json:"id"`
	EmployeeID   string          `json:"employee_id"`
	AttendanceID string          `json:"attendance_id"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	Approved     bool            `json:"approved"`
}

func toAttendanceDTO(r attendance.Record) AttendanceDTO {
	return AttendanceDTO{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		Date:           locale.FormatDate(r.Date),
		CheckIn:        r.CheckIn,
		CheckOut:       r.CheckOut,
		OvertimeHours:  r.OvertimeHours,
		OvertimeAmount: r.OvertimeAmount,
		Reason:         r.Reason,
		Paid:           r.Paid,
		IsHoliday:      r.IsHoliday,
		CreatedBy:      r.CreatedBy,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toAttendanceDTOs(records []attendance.Record) []AttendanceDTO {
	out := make([]AttendanceDTO, len(records))
	for i, r := range records {
		out[i] = toAttendanceDTO(r)
	}
	return out
}

func toSanctionDTO(s attendance.Sanction) SanctionDTO {
	return SanctionDTO{
		ID:           s.ID,
		EmployeeID:   s.EmployeeID,
		AttendanceID: s.AttendanceID,
		Type:         string(s.Type),
		Amount:       s.Amount,
		Date:         locale.FormatDate(s.Date),
		Description:  s.Description,
		Approved:     s.Approved,
	}
}

// =============================================================================
// MOVEMENTS AND BALANCE
// =============================================================================

type MovementDTO struct {
	ID            string            `json:"id"`
	EmployeeID    string            `json:"employee_id"`
	AttendanceID  string            `json:"attendance_id,omitempty"`
	Type          string            `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	AmountDisplay string            `json:"amount_display"`
	Date          string            `json:"date"`
	Description   string            `json:"description"`
	CreatedBy     string            `json:"created_by"`
	CreatedAt     string            `json:"created_at"`
	Status        string            `json:"status"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type CreateMovementRequest struct {
	Type        string          `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	CreatedBy   string          `json:"created_by"`
}

type ResetRequest struct {
	CreatedBy string `json:"created_by"`
}

type BalanceDTO struct {
	EmployeeID     string          `json:"employee_id"`
	Accrued        decimal.Decimal `json:"accrued"`
	Bonuses        decimal.Decimal `json:"bonuses"`
	Adjustments    decimal.Decimal `json:"adjustments"`
	Payments       decimal.Decimal `json:"payments"`
	Deductions     decimal.Decimal `json:"deductions"`
	Charges        decimal.Decimal `json:"charges"`
	Pending        decimal.Decimal `json:"pending"`
	PendingDisplay string          `json:"pending_display"`
	Since          string          `json:"since,omitempty"`
	Counted        int             `json:"counted"`
}

func toMovementDTO(f locale.Format, m ledger.Movement) MovementDTO {
	return MovementDTO{
		ID:            m.ID,
		EmployeeID:    m.EmployeeID,
		AttendanceID:  m.AttendanceID,
		Type:          string(m.Type),
		Amount:        m.Amount,
		AmountDisplay: f.FormatAmount(m.Amount),
		Date:          locale.FormatDate(m.Date),
		Description:   m.Description,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		Status:        string(m.Status),
		Meta:          m.Meta,
	}
}

func toBalanceDTO(f locale.Format, b ledger.Balance) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:     b.EmployeeID,
		Accrued:        b.Accrued,
		Bonuses:        b.Bonuses,
		Adjustments:    b.Adjustments,
		Payments:       b.Payments,
		Deductions:     b.Deductions,
		Charges:        b.Charges,
		Pending:        b.Pending,
		PendingDisplay: f.FormatAmount(b.Pending),
		Counted:        b.Counted,
	}
	if b.Since != nil {
		dto.Since = b.Since.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type CreateHolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toHolidayDTO(h calendar.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: locale.FormatDate(h.Date), Name: h.Name, Recurring: h.Recurring}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// RAW AMOUNTS
// =============================================================================

// rawAmount reads a JSON number or string. Strings go through the locale;
// null, absent and unreadable values are reported as not present.
func rawAmount(f locale.Format, raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
		return f.ParseAmount(s), true
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// rawSalary keeps a string salary exactly as entered; a number is
// rendered in the locale so it reads back to the same value.
func rawSalary(f locale.Format, raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	d, ok := rawAmount(f, raw)
	if !ok {
		return ""
	}
	f.Symbol = ""
	return f.FormatAmount(d)
}
