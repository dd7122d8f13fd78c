package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/locale"
)

// maxAttempts bounds how often a unit of work is retried on a retryable
// store error.
const maxAttempts = 3

// =============================================================================
// SERVICE
// =============================================================================

// Deps wires a Service. Tx and Calendar are optional.
type Deps struct {
	Records   Store
	Employees EmployeeStore
	Sanctions SanctionStore
	Ledger    *ledger.Ledger
	Tx        TxRunner          // nil: units run with compensating actions
	Calendar  calendar.Calendar // nil: only the explicit holiday flag counts
}

// Service owns the attendance-to-ledger linkage.
type Service struct {
	records   Store
	employees EmployeeStore
	sanctions SanctionStore
	ledger    *ledger.Ledger
	tx        TxRunner
	calendar  calendar.Calendar

	calc     *accrual.Calculator
	lateness accrual.Lateness
	loc      *time.Location
	now      func() time.Time
	newID    func() string
	log      *slog.Logger
}

type Option func(*Service)

func WithCalculator(c *accrual.Calculator) Option { return func(s *Service) { s.calc = c } }
func WithLateness(l accrual.Lateness) Option      { return func(s *Service) { s.lateness = l } }
func WithLocation(loc *time.Location) Option      { return func(s *Service) { s.loc = loc } }
func WithClock(now func() time.Time) Option       { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) Option          { return func(s *Service) { s.newID = newID } }
func WithLogger(log *slog.Logger) Option          { return func(s *Service) { s.log = log } }

func NewService(d Deps, opts ...Option) *Service {
	s := &Service{
		records:   d.Records,
		employees: d.Employees,
		sanctions: d.Sanctions,
		ledger:    d.Ledger,
		tx:        d.Tx,
		calendar:  d.Calendar,
		calc:      accrual.NewCalculator(),
		lateness:  accrual.DefaultLateness,
		loc:       time.UTC,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       slog.Default(),
	}
	if s.calendar == nil {
		s.calendar = calendar.None{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar day in the service's timezone.
func (s *Service) Today() time.Time {
	return locale.Day(s.now(), s.loc)
}

// =============================================================================
// INPUTS / OUTPUTS
// =============================================================================

// RecordInput describes a shift to log.
type RecordInput struct {
	EmployeeID     string
	Date           time.Time
	CheckIn        string
	CheckOut       string
	Reason         string
	IsHoliday      bool
	CreatedBy      string
	HolidayFactor  *decimal.Decimal
	OvertimeFactor *decimal.Decimal
}

// UpdateInput is a field level edit of a record. Nil fields are kept.
type UpdateInput struct {
	Date      *time.Time
	CheckIn   *string
	CheckOut  *string
	Reason    *string
	IsHoliday *bool
	Paid      *bool

	// Factors the shift is repriced with. Nil keeps the ones recorded on
	// the linked movement, or the calculator defaults when there is none.
	HolidayFactor  *decimal.Decimal
	OvertimeFactor *decimal.Decimal
}

// Outcome is everything one write produced.
type Outcome struct {
	Record   Record
	Accrual  accrual.Result
	Movement *ledger.Movement // nil when nothing was accrued or linked; voided when an update rescheduled the shift
	Sanction *Sanction        // nil unless a late arrival was detected
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee validates e, fills defaults and persists it.
func (s *Service) SaveEmployee(ctx context.Context, e Employee) (Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return Employee{}, fmt.Errorf("%w: name is required", ErrInvalidEmployee)
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	e.SalaryPeriod = e.SalaryPeriod.Normalize()
	if e.SalaryPeriod == "" {
		e.SalaryPeriod = accrual.PeriodMonthly
	}
	if !e.SalaryPeriod.Valid() {
		return Employee{}, fmt.Errorf("%w: unknown salary period %q", ErrInvalidEmployee, e.SalaryPeriod)
	}
	switch e.PayModality {
	case "":
		e.PayModality = ModalityAccrual
	case ModalityAccrual, ModalitySameDay:
	default:
		return Employee{}, fmt.Errorf("%w: unknown pay modality %q", ErrInvalidEmployee, e.PayModality)
	}
	if err := s.employees.SaveEmployee(ctx, e); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}
	return e, nil
}

func (s *Service) Employee(ctx context.Context, id string) (Employee, error) {
	e, err := s.employees.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, fmt.Errorf("load employee: %w", err)
	}
	if e == nil {
		return Employee{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return *e, nil
}

func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	return s.employees.ListEmployees(ctx)
}

// =============================================================================
// PRICING
// =============================================================================

// Preview prices a shift for an employee without writing anything.
func (s *Service) Preview(ctx context.Context, in RecordInput) (accrual.Result, error) {
	emp, err := s.validate(ctx, in.EmployeeID, in.Date, in.CheckIn, in.CheckOut)
	if err != nil {
		return accrual.Result{}, err
	}
	holiday := s.isHoliday(ctx, in.IsHoliday, in.Date)
	return s.price(emp, in.CheckIn, in.CheckOut, holiday, in.HolidayFactor, in.OvertimeFactor), nil
}

func (s *Service) validate(ctx context.Context, employeeID string, date time.Time, checkIn, checkOut string) (Employee, error) {
	if strings.TrimSpace(employeeID) == "" {
		return Employee{}, ErrEmployeeRequired
	}
	if date.IsZero() {
		return Employee{}, ErrDateRequired
	}
	if accrual.DurationMinutes(checkIn, checkOut) <= 0 {
		return Employee{}, fmt.Errorf("%w: %q-%q", ErrEmptyShift, checkIn, checkOut)
	}
	return s.Employee(ctx, employeeID)
}

// isHoliday is the explicit flag OR the calendar. A calendar failure
// falls back to the flag.
func (s *Service) isHoliday(ctx context.Context, flag bool, day time.Time) bool {
	if flag {
		return true
	}
	holiday, err := s.calendar.IsHoliday(ctx, day)
	if err != nil {
		s.log.Warn("holiday calendar unavailable", "date", locale.FormatDate(day), "err", err)
		return false
	}
	return holiday
}

func (s *Service) price(emp Employee, checkIn, checkOut string, holiday bool, hf, otf *decimal.Decimal) accrual.Result {
	return s.calc.Compute(accrual.Input{
		Salary:         emp.Salary,
		Period:         emp.SalaryPeriod,
		OfficialStart:  emp.OfficialStart,
		OfficialEnd:    emp.OfficialEnd,
		WorkedStart:    checkIn,
		WorkedEnd:      checkOut,
		IsHoliday:      holiday,
		HolidayFactor:  hf,
		OvertimeFactor: otf,
	})
}

func describe(date time.Time, checkIn, checkOut string, holiday bool) string {
	d := fmt.Sprintf("Asistencia %s %s-%s", locale.FormatDate(date), checkIn, checkOut)
	if holiday {
		d += " (feriado)"
	}
	return d
}

// =============================================================================
// RECORD
// =============================================================================

// Record logs a shift. In one unit of work it writes the record, the
// linked ASISTENCIA movement when the employee accrues and the date is not
// in the future, and a late-arrival sanction when a confirmed check-in is
// late.
func (s *Service) Record(ctx context.Context, in RecordInput) (Outcome, error) {
	emp, err := s.validate(ctx, in.EmployeeID, in.Date, in.CheckIn, in.CheckOut)
	if err != nil {
		return Outcome{}, err
	}

	day := locale.Day(in.Date, time.UTC)
	holiday := s.isHoliday(ctx, in.IsHoliday, day)
	result := s.price(emp, in.CheckIn, in.CheckOut, holiday, in.HolidayFactor, in.OvertimeFactor)
	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = SystemActor
	}

	rec := Record{
		ID:             s.newID(),
		EmployeeID:     emp.ID,
		Date:           day,
		CheckIn:        in.CheckIn,
		CheckOut:       in.CheckOut,
		OvertimeHours:  result.OvertimeHours(),
		OvertimeAmount: result.Amount,
		Reason:         in.Reason,
		Paid:           !emp.Accrues(),
		IsHoliday:      holiday,
		CreatedBy:      createdBy,
		Status:         statusFor(day, s.Today()),
		CreatedAt:      s.now().UTC(),
	}
	out := Outcome{Record: rec, Accrual: result}
	err = s.run(ctx, "record", emp.ID, func(ctx context.Context, u *unit) error {
		out.Movement, out.Sanction = nil, nil

		if err := s.records.InsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		u.undo(func(ctx context.Context) error { return s.records.DeleteRecord(ctx, rec.ID) })

		if emp.Accrues() && rec.Status == StatusConfirmed {
			m, err := s.ledger.AddMovement(ctx, ledger.Movement{
				EmployeeID:   emp.ID,
				AttendanceID: rec.ID,
				Type:         ledger.TypeAttendance,
				Amount:       result.Amount,
				Date:         day,
				Description:  describe(day, rec.CheckIn, rec.CheckOut, holiday),
				CreatedBy:    createdBy,
				Meta:         result.Meta(),
			})
			if err != nil {
				return err
			}
			out.Movement = &m
			u.undo(func(ctx context.Context) error {
				_, err := s.ledger.VoidMovement(ctx, m.ID, "Asistencia no registrada")
				return err
			})
		}

		if rec.Status == StatusConfirmed {
			if minutes, late := s.lateness.Check(emp.OfficialStart, rec.CheckIn); late {
				sanction := Sanction{
					ID:           s.newID(),
					EmployeeID:   emp.ID,
					AttendanceID: rec.ID,
					Type:         SanctionLateArrival,
					Amount:       decimal.Zero,
					Date:         day,
					Description:  fmt.Sprintf("Llegada tarde: %s (%d min, horario %s)", rec.CheckIn, minutes, emp.OfficialStart),
					CreatedBy:    SystemActor,
					Approved:     true,
					CreatedAt:    rec.CreatedAt,
				}
				if err := s.sanctions.InsertSanction(ctx, sanction); err != nil {
					return fmt.Errorf("insert sanction: %w", err)
				}
				out.Sanction = &sanction
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	s.log.Info("attendance recorded",
		"attendance_id", rec.ID, "employee_id", emp.ID, "date", locale.FormatDate(day),
		"status", rec.Status, "amount", result.Amount.String(), "linked", out.Movement != nil, "late", out.Sanction != nil)
	return out, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Update edits a record, reprices it and brings the linked movement in
// line. The record's status follows its date: a confirmed record moved into
// the future becomes SCHEDULED and its movement is voided. A record without
// an active movement is updated alone.
//
// Repricing keeps the holiday and overtime factors the shift was first
// priced with unless in overrides them. The stored holiday flag survives
// only while the date is unchanged; a new date is looked up in the calendar.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Outcome, error) {
	before, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("load record: %w", err)
	}
	if before == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	rec := *before
	if in.Date != nil {
		rec.Date = locale.Day(*in.Date, time.UTC)
	}
	if in.CheckIn != nil {
		rec.CheckIn = *in.CheckIn
	}
	if in.CheckOut != nil {
		rec.CheckOut = *in.CheckOut
	}
	if in.Reason != nil {
		rec.Reason = *in.Reason
	}
	if in.Paid != nil {
		rec.Paid = *in.Paid
	}

	emp, err := s.validate(ctx, rec.EmployeeID, rec.Date, rec.CheckIn, rec.CheckOut)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case in.IsHoliday != nil:
		rec.IsHoliday = s.isHoliday(ctx, *in.IsHoliday, rec.Date)
	case !rec.Date.Equal(before.Date):
		rec.IsHoliday = s.isHoliday(ctx, false, rec.Date)
	default:
		rec.IsHoliday = s.isHoliday(ctx, before.IsHoliday, rec.Date)
	}

	linked, err := s.ledger.MovementByAttendanceID(ctx, rec.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find linked movement: %w", err)
	}
	hf, otf := in.HolidayFactor, in.OvertimeFactor
	if linked != nil {
		priced := accrual.ResultFromMeta(linked.Meta)
		if hf == nil && priced.HolidayFactor.IsPositive() {
			hf = &priced.HolidayFactor
		}
		if otf == nil && priced.OvertimeFactor.IsPositive() {
			otf = &priced.OvertimeFactor
		}
	}

	result := s.price(emp, rec.CheckIn, rec.CheckOut, rec.IsHoliday, hf, otf)
	rec.OvertimeHours = result.OvertimeHours()
	rec.OvertimeAmount = result.Amount
	rec.Status = statusFor(rec.Date, s.Today())

	out := Outcome{Record: rec, Accrual: result}
	err = s.run(ctx, "update", emp.ID, func(ctx context.Context, u *unit) error {
		out.Movement = nil

		if err := s.records.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		u.undo(func(ctx context.Context) error { return s.records.UpdateRecord(ctx, *before) })

		if rec.Status == StatusScheduled {
			previous, err := s.ledger.MovementByAttendanceID(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("find linked movement: %w", err)
			}
			voided, err := s.ledger.VoidMovementByAttendanceID(ctx, rec.ID, "Asistencia reprogramada")
			if err != nil {
				return err
			}
			if previous != nil && voided != nil {
				u.undo(func(ctx context.Context) error { return s.ledger.Revert(ctx, *previous) })
			}
			out.Movement = voided
			return nil
		}

		description := describe(rec.Date, rec.CheckIn, rec.CheckOut, rec.IsHoliday)
		date := rec.Date
		m, err := s.ledger.UpdateMovementByAttendanceID(ctx, rec.ID, ledger.Patch{
			Amount:      &result.Amount,
			Description: &description,
			Date:        &date,
			Meta:        result.Meta(),
		})
		if err != nil {
			return err
		}
		out.Movement = m
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	s.log.Info("attendance updated",
		"attendance_id", rec.ID, "employee_id", emp.ID, "status", rec.Status,
		"amount", result.Amount.String(), "linked", out.Movement != nil && out.Movement.IsActive())
	return out, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete voids the movement linked to a record and removes the record, as
// one unit. Deleting an unknown record is a no-op. It returns the voided
// movement, if there was one.
func (s *Service) Delete(ctx context.Context, id string) (*ledger.Movement, error) {
	rec, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		s.log.Debug("attendance already deleted", "attendance_id", id)
		return nil, nil
	}

	var voided *ledger.Movement
	err = s.run(ctx, "delete", rec.EmployeeID, func(ctx context.Context, u *unit) error {
		voided = nil

		previous, err := s.ledger.MovementByAttendanceID(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("find linked movement: %w", err)
		}
		voided, err = s.ledger.VoidMovementByAttendanceID(ctx, rec.ID, ledger.VoidNoteDeletedFromCalendar)
		if err != nil {
			return err
		}
		if previous != nil && voided != nil {
			u.undo(func(ctx context.Context) error { return s.ledger.Revert(ctx, *previous) })
		}

		if err := s.records.DeleteRecord(ctx, rec.ID); err != nil && !errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("attendance deleted", "attendance_id", rec.ID, "employee_id", rec.EmployeeID, "voided", voided != nil)
	return voided, nil
}

// =============================================================================
// READS
// =============================================================================

// List returns records matching f after promoting elapsed scheduled ones.
// Promotions are persisted; a failed promotion is logged and the record is
// still returned confirmed.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	records, err := s.records.ListRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	records, promoted := ConfirmElapsed(records, s.Today())
	for _, r := range promoted {
		if err := s.records.UpdateRecord(ctx, r); err != nil {
			s.log.Warn("persist auto-confirmation failed", "attendance_id", r.ID, "err", err)
			continue
		}
		s.log.Debug("attendance auto-confirmed", "attendance_id", r.ID, "date", locale.FormatDate(r.Date))
	}
	return records, nil
}

// Get returns one record, promoted if its date has arrived.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	all, promoted := ConfirmElapsed([]Record{*rec}, s.Today())
	if len(promoted) > 0 {
		if err := s.records.UpdateRecord(ctx, promoted[0]); err != nil {
			s.log.Warn("persist auto-confirmation failed", "attendance_id", rec.ID, "err", err)
		}
	}
	return all[0], nil
}

// Unlinked lists confirmed records of accruing employees that have no
// active movement. Records that were scheduled when logged land here once
// their date passes, since confirmation does not accrue.
func (s *Service) Unlinked(ctx context.Context, f Filter) ([]Record, error) {
	records, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	accrues := make(map[string]bool)
	var out []Record
	for _, r := range records {
		if r.Status != StatusConfirmed {
			continue
		}
		a, seen := accrues[r.EmployeeID]
		if !seen {
			emp, err := s.employees.GetEmployee(ctx, r.EmployeeID)
			if err != nil {
				return nil, fmt.Errorf("load employee: %w", err)
			}
			a = emp != nil && emp.Accrues()
			accrues[r.EmployeeID] = a
		}
		if !a {
			continue
		}
		m, err := s.ledger.MovementByAttendanceID(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("find linked movement: %w", err)
		}
		if m == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// LEDGER PASS-THROUGH
// =============================================================================

// AddMovement records a manual movement (payment, bonus...) for a known
// employee.
func (s *Service) AddMovement(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	if _, err := s.Employee(ctx, m.EmployeeID); err != nil {
		return ledger.Movement{}, err
	}
	return s.ledger.AddMovement(ctx, m)
}

// Movements returns the employee's history, most recent first.
func (s *Service) Movements(ctx context.Context, employeeID string) ([]ledger.Movement, error) {
	if _, err := s.Employee(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, employeeID)
}

// Reset closes the employee's books as of now.
func (s *Service) Reset(ctx context.Context, employeeID, createdBy string) (ledger.Movement, error) {
	if _, err := s.Employee(ctx, employeeID); err != nil {
		return ledger.Movement{}, err
	}
	return s.ledger.Reset(ctx, employeeID, s.Today(), createdBy)
}

// PendingBalance recomputes what the employee is owed from the ledger and
// the approved sanctions.
func (s *Service) PendingBalance(ctx context.Context, employeeID string) (ledger.Balance, error) {
	movements, err := s.Movements(ctx, employeeID)
	if err != nil {
		return ledger.Balance{}, err
	}
	sanctions, err := s.sanctions.SanctionsByEmployee(ctx, employeeID)
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("load sanctions: %w", err)
	}
	var charges []ledger.Charge
	for _, sn := range sanctions {
		if sn.Approved {
			charges = append(charges, ledger.Charge{Amount: sn.Amount, CreatedAt: sn.CreatedAt})
		}
	}
	return ledger.Aggregate(employeeID, movements, charges), nil
}
