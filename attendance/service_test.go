package attendance_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var today = day(2026, time.March, 2)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func ids(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type fixture struct {
	store   *memory.Store
	ledger  *ledger.Ledger
	service *attendance.Service
	clock   *clock
}

type options struct {
	calendar calendar.Calendar
}

func newFixture(t *testing.T, o options) *fixture {
	t.Helper()
	store := memory.New()
	c := &clock{t: today.Add(15 * time.Hour)}
	l := ledger.New(store, ledger.WithClock(c.Now), ledger.WithIDs(ids("mov")))

	deps := attendance.Deps{
		Records:   store,
		Employees: store,
		Sanctions: store,
		Ledger:    l,
		Tx:        store,
		Calendar:  o.calendar,
	}
	svc := attendance.NewService(deps, attendance.WithClock(c.Now), attendance.WithIDs(ids("id")))

	ctx := context.Background()
	_, err := svc.SaveEmployee(ctx, attendance.Employee{
		ID: "emp-1", Name: "Lucía", Salary: "300.000", SalaryPeriod: accrual.PeriodMonthly,
		OfficialStart: "09:00", OfficialEnd: "17:00", PayModality: attendance.ModalityAccrual, Active: true,
	})
	require.NoError(t, err)
	_, err = svc.SaveEmployee(ctx, attendance.Employee{
		ID: "emp-2", Name: "Mateo", Salary: "300000", SalaryPeriod: accrual.PeriodMonthly,
		OfficialStart: "09:00", OfficialEnd: "17:00", PayModality: attendance.ModalitySameDay, Active: true,
	})
	require.NoError(t, err)

	return &fixture{store: store, ledger: l, service: svc, clock: c}
}

func shift(date time.Time, in, out string) attendance.RecordInput {
	return attendance.RecordInput{EmployeeID: "emp-1", Date: date, CheckIn: in, CheckOut: out, CreatedBy: "ana"}
}

// failingSanctions rejects every sanction.
type failingSanctions struct{ *memory.Store }

func (failingSanctions) InsertSanction(context.Context, attendance.Sanction) error {
	return errors.New("sanctions unavailable")
}

// contendedRecords reports a busy database on the first n inserts.
type contendedRecords struct {
	*memory.Store
	busy int
}

func (c *contendedRecords) InsertRecord(ctx context.Context, r attendance.Record) error {
	if c.busy > 0 {
		c.busy--
		return ledger.ErrConcurrentModification
	}
	return c.Store.InsertRecord(ctx, r)
}

// =============================================================================
// RECORD
// =============================================================================

func TestRecord_ConfirmedShiftAccruesOneLinkedMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	// GIVEN a 09:00-19:00 shift today for a monthly 300.000 employee on 09:00-17:00
	out, err := f.service.Record(ctx, shift(today, "09:00", "19:00"))
	require.NoError(t, err)

	// THEN the record is confirmed and priced
	assert.Equal(t, attendance.StatusConfirmed, out.Record.Status)
	assert.True(t, dec("12500").Equal(out.Record.OvertimeAmount), "got %s", out.Record.OvertimeAmount)
	assert.True(t, dec("2").Equal(out.Record.OvertimeHours))
	assert.False(t, out.Record.Paid)

	// AND exactly one ASISTENCIA movement links to it with the breakdown as meta
	require.NotNil(t, out.Movement)
	assert.Equal(t, ledger.TypeAttendance, out.Movement.Type)
	assert.Equal(t, out.Record.ID, out.Movement.AttendanceID)
	assert.True(t, dec("12500").Equal(out.Movement.Amount))
	assert.Equal(t, "ana", out.Movement.CreatedBy)

	back := accrual.ResultFromMeta(out.Movement.Meta)
	assert.Equal(t, 480, back.OfficialMinutes)
	assert.Equal(t, 120, back.ExtraMinutes)
	assert.True(t, dec("10000").Equal(back.DailyBase))

	history, err := f.ledger.History(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Nil(t, out.Sanction)
}

func TestRecord_FutureShiftIsScheduledWithoutMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	out, err := f.service.Record(ctx, shift(today.AddDate(0, 0, 3), "09:30", "17:00"))
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusScheduled, out.Record.Status)
	assert.Nil(t, out.Movement)
	assert.Nil(t, out.Sanction, "lateness is only checked on confirmed records")

	linked, err := f.ledger.MovementByAttendanceID(ctx, out.Record.ID)
	require.NoError(t, err)
	assert.Nil(t, linked)
}

func TestRecord_SameDayModalityIsPaidWithoutMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	in := shift(today, "09:00", "17:00")
	in.EmployeeID = "emp-2"
	out, err := f.service.Record(ctx, in)
	require.NoError(t, err)

	assert.True(t, out.Record.Paid)
	assert.Nil(t, out.Movement)
	assert.True(t, dec("10000").Equal(out.Record.OvertimeAmount))

	unlinked, err := f.service.Unlinked(ctx, attendance.Filter{})
	require.NoError(t, err)
	assert.Empty(t, unlinked)
}

func TestRecord_HolidayFromFlagOrCalendar(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemory(calendar.Holiday{ID: "h1", Date: today, Name: "Feriado"})
	f := newFixture(t, options{calendar: cal})

	out, err := f.service.Record(ctx, shift(today, "09:00", "19:00"))
	require.NoError(t, err)
	assert.True(t, out.Record.IsHoliday)
	assert.True(t, dec("25000").Equal(out.Movement.Amount), "got %s", out.Movement.Amount)

	flagged := shift(today.AddDate(0, 0, -1), "09:00", "17:00")
	flagged.IsHoliday = true
	out, err = f.service.Record(ctx, flagged)
	require.NoError(t, err)
	assert.True(t, dec("20000").Equal(out.Movement.Amount))
}

func TestRecord_LateArrivalCreatesSanction(t *testing.T) {
	tests := []struct {
		name    string
		checkIn string
		late    bool
	}{
		{"within grace", "09:10", false},
		{"just past grace", "09:11", true},
		{"half an hour", "09:30", true},
		{"at the cap", "13:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, options{})

			out, err := f.service.Record(ctx, shift(today, tt.checkIn, "18:00"))
			require.NoError(t, err)

			sanctions, err := f.store.SanctionsByEmployee(ctx, "emp-1")
			require.NoError(t, err)
			if !tt.late {
				assert.Nil(t, out.Sanction)
				assert.Empty(t, sanctions)
				return
			}
			require.NotNil(t, out.Sanction)
			require.Len(t, sanctions, 1)
			s := sanctions[0]
			assert.Equal(t, attendance.SanctionLateArrival, s.Type)
			assert.Equal(t, attendance.SystemActor, s.CreatedBy)
			assert.True(t, s.Approved)
			assert.True(t, s.Amount.IsZero())
			assert.Equal(t, out.Record.ID, s.AttendanceID)
		})
	}
}

func TestRecord_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	_, err := f.service.Record(ctx, attendance.RecordInput{Date: today, CheckIn: "09:00", CheckOut: "17:00"})
	assert.ErrorIs(t, err, attendance.ErrEmployeeRequired)
	assert.True(t, attendance.IsClientError(err))

	_, err = f.service.Record(ctx, shift(today, "09:00", "09:00"))
	assert.ErrorIs(t, err, attendance.ErrEmptyShift)

	_, err = f.service.Record(ctx, shift(today, "", ""))
	assert.ErrorIs(t, err, attendance.ErrEmptyShift)

	_, err = f.service.Record(ctx, shift(time.Time{}, "09:00", "17:00"))
	assert.ErrorIs(t, err, attendance.ErrDateRequired)

	in := shift(today, "09:00", "17:00")
	in.EmployeeID = "ghost"
	_, err = f.service.Record(ctx, in)
	assert.ErrorIs(t, err, attendance.ErrEmployeeNotFound)
	assert.True(t, attendance.IsNotFound(err))

	records, err := f.store.ListRecords(ctx, attendance.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecord_FailedSideEffectRollsBackWithTx(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})
	f.service = attendance.NewService(attendance.Deps{
		Records: f.store, Employees: f.store, Sanctions: failingSanctions{f.store}, Ledger: f.ledger, Tx: f.store,
	}, attendance.WithClock(f.clock.Now))

	_, err := f.service.Record(ctx, shift(today, "09:30", "17:00"))
	require.Error(t, err)

	records, err := f.store.ListRecords(ctx, attendance.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	history, err := f.ledger.History(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecord_FailedSideEffectCompensatesWithoutTx(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})
	f.service = attendance.NewService(attendance.Deps{
		Records: f.store, Employees: f.store, Sanctions: failingSanctions{f.store}, Ledger: f.ledger,
	}, attendance.WithClock(f.clock.Now))

	_, err := f.service.Record(ctx, shift(today, "09:30", "17:00"))
	require.Error(t, err)

	records, err := f.store.ListRecords(ctx, attendance.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records, "record removed by compensation")

	history, err := f.ledger.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 1, "movements are voided, never removed")
	assert.Equal(t, ledger.StatusVoided, history[0].Status)
}

func TestRecord_RetriesBusyStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})
	busy := &contendedRecords{Store: f.store, busy: 2}
	f.service = attendance.NewService(attendance.Deps{
		Records: busy, Employees: f.store, Sanctions: f.store, Ledger: f.ledger,
	}, attendance.WithClock(f.clock.Now))

	out, err := f.service.Record(ctx, shift(today, "09:00", "17:00"))
	require.NoError(t, err)
	assert.NotNil(t, out.Movement)

	// busy for every attempt
	busy.busy = 3
	_, err = f.service.Record(ctx, shift(today, "09:00", "17:00"))
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestUpdate_PatchesLinkedMovement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	created, err := f.service.Record(ctx, shift(today, "09:00", "19:00"))
	require.NoError(t, err)

	out := "17:00"
	updated, err := f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{CheckOut: &out})
	require.NoError(t, err)

	assert.True(t, dec("10000").Equal(updated.Record.OvertimeAmount))
	require.NotNil(t, updated.Movement)
	assert.Equal(t, created.Movement.ID, updated.Movement.ID)
	assert.True(t, dec("10000").Equal(updated.Movement.Amount))

	history, err := f.ledger.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, dec("10000").Equal(history[0].Amount))
	assert.Equal(t, "0", history[0].Meta[accrual.MetaExtraMinutes])
}

func TestUpdate_KeepsRecordedFactors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	// GIVEN a 09:00-19:00 shift priced with an overtime factor of 1.5
	in := shift(today, "09:00", "19:00")
	factor := dec("1.5")
	in.OvertimeFactor = &factor
	created, err := f.service.Record(ctx, in)
	require.NoError(t, err)
	require.True(t, dec("13750").Equal(created.Movement.Amount), "got %s", created.Movement.Amount)

	// WHEN only the reason changes
	reason := "cierre de inventario"
	updated, err := f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{Reason: &reason})
	require.NoError(t, err)

	// THEN the amount is unchanged on the record and the movement
	assert.True(t, dec("13750").Equal(updated.Record.OvertimeAmount), "got %s", updated.Record.OvertimeAmount)
	require.NotNil(t, updated.Movement)
	assert.True(t, dec("13750").Equal(updated.Movement.Amount), "got %s", updated.Movement.Amount)
	assert.Equal(t, "1.5", updated.Movement.Meta[accrual.MetaOvertimeFactor])

	stored, err := f.store.GetRecord(ctx, created.Record.ID)
	require.NoError(t, err)
	assert.True(t, dec("13750").Equal(stored.OvertimeAmount))

	// WHEN the factor is overridden explicitly
	double := dec("2")
	updated, err = f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{OvertimeFactor: &double})
	require.NoError(t, err)

	// THEN the two extra hours are paid double
	assert.True(t, dec("15000").Equal(updated.Movement.Amount), "got %s", updated.Movement.Amount)
}

func TestUpdate_MovingOffAHolidayDropsTheFlag(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemory(calendar.Holiday{ID: "h1", Date: today, Name: "Feriado"})
	f := newFixture(t, options{calendar: cal})

	// GIVEN an 8h shift on a calendar holiday
	created, err := f.service.Record(ctx, shift(today, "09:00", "17:00"))
	require.NoError(t, err)
	require.True(t, created.Record.IsHoliday)
	require.True(t, dec("20000").Equal(created.Movement.Amount))

	// WHEN it is moved to the day before
	yesterday := today.AddDate(0, 0, -1)
	updated, err := f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{Date: &yesterday})
	require.NoError(t, err)

	// THEN it is an ordinary day again
	assert.False(t, updated.Record.IsHoliday)
	assert.True(t, dec("10000").Equal(updated.Record.OvertimeAmount), "got %s", updated.Record.OvertimeAmount)
	require.NotNil(t, updated.Movement)
	assert.True(t, dec("10000").Equal(updated.Movement.Amount), "got %s", updated.Movement.Amount)
	assert.True(t, updated.Movement.Date.Equal(yesterday))

	// AND moving it back finds the holiday again
	updated, err = f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{Date: &today})
	require.NoError(t, err)
	assert.True(t, updated.Record.IsHoliday)
	assert.True(t, dec("20000").Equal(updated.Movement.Amount))
}

func TestUpdate_FlaggedHolidaySurvivesOtherEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	in := shift(today, "09:00", "17:00")
	in.IsHoliday = true
	created, err := f.service.Record(ctx, in)
	require.NoError(t, err)

	out := "18:00"
	updated, err := f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{CheckOut: &out})
	require.NoError(t, err)
	assert.True(t, updated.Record.IsHoliday)
	assert.True(t, dec("22500").Equal(updated.Movement.Amount), "got %s", updated.Movement.Amount)
}

func TestUpdate_MovingIntoTheFutureReschedules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	// GIVEN a confirmed shift today with its movement
	created, err := f.service.Record(ctx, shift(today, "09:00", "17:00"))
	require.NoError(t, err)
	require.Equal(t, attendance.StatusConfirmed, created.Record.Status)
	require.NotNil(t, created.Movement)

	// WHEN its date is moved five days ahead
	later := today.AddDate(0, 0, 5)
	updated, err := f.service.Update(ctx, created.Record.ID, attendance.UpdateInput{Date: &later})
	require.NoError(t, err)

	// THEN it is scheduled and no longer accrues
	assert.Equal(t, attendance.StatusScheduled, updated.Record.Status)
	require.NotNil(t, updated.Movement)
	assert.Equal(t, ledger.StatusVoided, updated.Movement.Status)

	linked, err := f.ledger.MovementByAttendanceID(ctx, created.Record.ID)
	require.NoError(t, err)
	assert.Nil(t, linked)

	stored, err := f.store.GetRecord(ctx, created.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusScheduled, stored.Status)

	balance, err := f.service.PendingBalance(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, balance.Pending.IsZero(), "got %s", balance.Pending)
}

func TestUpdate_UnknownRecord(t *testing.T) {
	f := newFixture(t, options{})
	_, err := f.service.Update(context.Background(), "nope", attendance.UpdateInput{})
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestDelete_VoidsLinkedMovementAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	created, err := f.service.Record(ctx, shift(today, "09:00", "19:00"))
	require.NoError(t, err)

	// WHEN the record is deleted
	voided, err := f.service.Delete(ctx, created.Record.ID)
	require.NoError(t, err)

	// THEN its movement is voided with the audit note and kept
	require.NotNil(t, voided)
	assert.Equal(t, ledger.StatusVoided, voided.Status)
	assert.Equal(t, "Asistencia borrada desde Calendario", voided.Description)

	rec, err := f.store.GetRecord(ctx, created.Record.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// AND deleting again is a no-op
	again, err := f.service.Delete(ctx, created.Record.ID)
	assert.NoError(t, err)
	assert.Nil(t, again)

	history, err := f.ledger.History(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ledger.StatusVoided, history[0].Status)
}

// =============================================================================
// READS
// =============================================================================

func TestList_ConfirmsElapsedScheduledRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	out, err := f.service.Record(ctx, shift(today.AddDate(0, 0, 1), "09:00", "17:00"))
	require.NoError(t, err)
	require.Equal(t, attendance.StatusScheduled, out.Record.Status)

	records, err := f.service.List(ctx, attendance.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusScheduled, records[0].Status)

	// the day arrives
	f.clock.t = f.clock.t.Add(24 * time.Hour)

	records, err = f.service.List(ctx, attendance.Filter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusConfirmed, records[0].Status)

	stored, err := f.store.GetRecord(ctx, out.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusConfirmed, stored.Status, "promotion persisted")

	// confirmation does not accrue; the gap is visible
	unlinked, err := f.service.Unlinked(ctx, attendance.Filter{})
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, out.Record.ID, unlinked[0].ID)
}

func TestConfirmElapsed(t *testing.T) {
	records := []attendance.Record{
		{ID: "past", Date: today.AddDate(0, 0, -1), Status: attendance.StatusScheduled},
		{ID: "today", Date: today, Status: attendance.StatusScheduled},
		{ID: "future", Date: today.AddDate(0, 0, 1), Status: attendance.StatusScheduled},
		{ID: "done", Date: today.AddDate(0, 0, -5), Status: attendance.StatusConfirmed},
	}

	all, promoted := attendance.ConfirmElapsed(records, today)
	require.Len(t, promoted, 2)
	assert.Equal(t, "past", promoted[0].ID)
	assert.Equal(t, "today", promoted[1].ID)
	assert.Equal(t, attendance.StatusScheduled, all[2].Status)
	assert.Equal(t, attendance.StatusScheduled, records[0].Status, "input untouched")

	again, none := attendance.ConfirmElapsed(all, today)
	assert.Empty(t, none)
	assert.Equal(t, all, again)
}

func TestPendingBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	_, err := f.service.Record(ctx, shift(today, "09:00", "19:00"))
	require.NoError(t, err)
	_, err = f.service.Record(ctx, shift(today.AddDate(0, 0, -1), "09:30", "17:00"))
	require.NoError(t, err)
	_, err = f.service.AddMovement(ctx, ledger.Movement{EmployeeID: "emp-1", Type: ledger.TypePayment, Amount: dec("5000")})
	require.NoError(t, err)

	b, err := f.service.PendingBalance(ctx, "emp-1")
	require.NoError(t, err)

	// 12500 + 9375 - 5000; the late sanction carries no amount
	assert.True(t, dec("16875").Equal(b.Pending), "got %s", b.Pending)
	assert.Equal(t, 3, b.Counted)

	_, err = f.service.PendingBalance(ctx, "ghost")
	assert.ErrorIs(t, err, attendance.ErrEmployeeNotFound)
}

func TestPreview_WritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	res, err := f.service.Preview(ctx, shift(today, "09:00", "19:00"))
	require.NoError(t, err)
	assert.True(t, dec("12500").Equal(res.Amount))

	records, err := f.store.ListRecords(ctx, attendance.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveEmployee_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, options{})

	_, err := f.service.SaveEmployee(ctx, attendance.Employee{Name: " "})
	assert.ErrorIs(t, err, attendance.ErrInvalidEmployee)

	_, err = f.service.SaveEmployee(ctx, attendance.Employee{Name: "Sofía", SalaryPeriod: "yearly"})
	assert.ErrorIs(t, err, attendance.ErrInvalidEmployee)

	e, err := f.service.SaveEmployee(ctx, attendance.Employee{Name: "Sofía"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, accrual.PeriodMonthly, e.SalaryPeriod)
	assert.Equal(t, attendance.ModalityAccrual, e.PayModality)

	// mixed case is accepted and stored lower-cased
	e, err = f.service.SaveEmployee(ctx, attendance.Employee{Name: "Sofía", SalaryPeriod: "Weekly"})
	require.NoError(t, err)
	assert.Equal(t, accrual.PeriodWeekly, e.SalaryPeriod)

	stored, err := f.service.Employee(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, accrual.PeriodWeekly, stored.SalaryPeriod)
}
