package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
)

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

const recordSelect = `
    SELECT id, employee_id, date, check_in, check_out, overtime_hours::text, overtime_amount::text,
           reason, paid, is_holiday, created_by, status, created_at
      FROM attendance`

const (
	insertRecordSQL = `
    INSERT INTO attendance (id, employee_id, date, check_in, check_out, overtime_hours, overtime_amount,
                            reason, paid, is_holiday, created_by, status, created_at)
    VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)`

	updateRecordSQL = `
    UPDATE attendance
       SET date = $1, check_in = $2, check_out = $3, overtime_hours = $4::numeric, overtime_amount = $5::numeric,
           reason = $6, paid = $7, is_holiday = $8, status = $9
     WHERE id = $10`

	deleteRecordSQL = `DELETE FROM attendance WHERE id = $1`

	getRecordSQL = recordSelect + `
     WHERE id = $1`
)

func (s *Store) InsertRecord(ctx context.Context, r attendance.Record) error {
	_, err := s.q(ctx).Exec(ctx, insertRecordSQL,
		r.ID, r.EmployeeID, r.Date, r.CheckIn, r.CheckOut,
		r.OvertimeHours.String(), r.OvertimeAmount.String(),
		r.Reason, r.Paid, r.IsHoliday, r.CreatedBy, string(r.Status), r.CreatedAt.UTC(),
	)
	if err != nil {
		return translate(fmt.Errorf("postgres: insert attendance: %w", err))
	}
	return nil
}

func (s *Store) UpdateRecord(ctx context.Context, r attendance.Record) error {
	tag, err := s.q(ctx).Exec(ctx, updateRecordSQL,
		r.Date, r.CheckIn, r.CheckOut,
		r.OvertimeHours.String(), r.OvertimeAmount.String(),
		r.Reason, r.Paid, r.IsHoliday, string(r.Status), r.ID,
	)
	if err != nil {
		return translate(fmt.Errorf("postgres: update attendance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", attendance.ErrRecordNotFound, r.ID)
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, deleteRecordSQL, id)
	if err != nil {
		return translate(fmt.Errorf("postgres: delete attendance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", attendance.ErrRecordNotFound, id)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	r, err := scanRecord(s.q(ctx).QueryRow(ctx, getRecordSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// listRecordsQuery builds the filtered listing and its arguments.
func listRecordsQuery(f attendance.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, cond+" $"+strconv.Itoa(len(args)))
	}
	if f.EmployeeID != "" {
		add("employee_id =", f.EmployeeID)
	}
	if f.From != nil {
		add("date >=", *f.From)
	}
	if f.To != nil {
		add("date <=", *f.To)
	}

	query := recordSelect
	if len(where) > 0 {
		query += `
     WHERE ` + strings.Join(where, " AND ")
	}
	query += `
     ORDER BY date, check_in, id`
	return query, args
}

func (s *Store) ListRecords(ctx context.Context, f attendance.Filter) ([]attendance.Record, error) {
	query, args := listRecordsQuery(f)
	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, translate(fmt.Errorf("postgres: list attendance: %w", err))
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var (
		r                     attendance.Record
		hours, amount, status string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.CheckIn, &r.CheckOut, &hours, &amount,
		&r.Reason, &r.Paid, &r.IsHoliday, &r.CreatedBy, &status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, translate(fmt.Errorf("postgres: scan attendance: %w", err))
	}

	r.Status = attendance.Status(status)
	r.Date = utcDay(r.Date)
	r.CreatedAt = r.CreatedAt.UTC()
	if r.OvertimeHours, err = decimal.NewFromString(hours); err != nil {
		return r, fmt.Errorf("postgres: attendance %s overtime_hours %q: %w", r.ID, hours, err)
	}
	if r.OvertimeAmount, err = decimal.NewFromString(amount); err != nil {
		return r, fmt.Errorf("postgres: attendance %s overtime_amount %q: %w", r.ID, amount, err)
	}
	return r, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeSelect = `
    SELECT id, name, salary, salary_period, official_start, official_end, pay_modality, active
      FROM employees`

const (
	saveEmployeeSQL = `
    INSERT INTO employees (id, name, salary, salary_period, official_start, official_end, pay_modality, active)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (id) DO UPDATE SET
        name = EXCLUDED.name,
        salary = EXCLUDED.salary,
        salary_period = EXCLUDED.salary_period,
        official_start = EXCLUDED.official_start,
        official_end = EXCLUDED.official_end,
        pay_modality = EXCLUDED.pay_modality,
        active = EXCLUDED.active`

	getEmployeeSQL = employeeSelect + `
     WHERE id = $1`

	listEmployeesSQL = employeeSelect + `
     ORDER BY name, id`
)

func (s *Store) SaveEmployee(ctx context.Context, e attendance.Employee) error {
	_, err := s.q(ctx).Exec(ctx, saveEmployeeSQL,
		e.ID, e.Name, e.Salary, string(e.SalaryPeriod), e.OfficialStart, e.OfficialEnd, string(e.PayModality), e.Active,
	)
	if err != nil {
		return translate(fmt.Errorf("postgres: save employee: %w", err))
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*attendance.Employee, error) {
	e, err := scanEmployee(s.q(ctx).QueryRow(ctx, getEmployeeSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	rows, err := s.q(ctx).Query(ctx, listEmployeesSQL)
	if err != nil {
		return nil, translate(fmt.Errorf("postgres: list employees: %w", err))
	}
	defer rows.Close()

	var out []attendance.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row pgx.Row) (attendance.Employee, error) {
	var e attendance.Employee
	var period, modality string
	if err := row.Scan(&e.ID, &e.Name, &e.Salary, &period, &e.OfficialStart, &e.OfficialEnd, &modality, &e.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return e, err
		}
		return e, translate(fmt.Errorf("postgres: scan employee: %w", err))
	}
	e.SalaryPeriod = accrual.SalaryPeriod(period)
	e.PayModality = attendance.PayModality(modality)
	return e, nil
}

// =============================================================================
// SANCTIONS
// =============================================================================

const (
	insertSanctionSQL = `
    INSERT INTO sanctions (id, employee_id, attendance_id, type, amount, date, description, created_by, approved, created_at)
    VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)`

	sanctionsByEmployeeSQL = `
    SELECT id, employee_id, COALESCE(attendance_id, ''), type, amount::text, date, description, created_by, approved, created_at
      FROM sanctions
     WHERE employee_id = $1
     ORDER BY created_at, id`
)

func (s *Store) InsertSanction(ctx context.Context, sn attendance.Sanction) error {
	_, err := s.q(ctx).Exec(ctx, insertSanctionSQL,
		sn.ID, sn.EmployeeID, nullable(sn.AttendanceID), string(sn.Type), sn.Amount.String(),
		sn.Date, sn.Description, sn.CreatedBy, sn.Approved, sn.CreatedAt.UTC(),
	)
	if err != nil {
		return translate(fmt.Errorf("postgres: insert sanction: %w", err))
	}
	return nil
}

func (s *Store) SanctionsByEmployee(ctx context.Context, employeeID string) ([]attendance.Sanction, error) {
	rows, err := s.q(ctx).Query(ctx, sanctionsByEmployeeSQL, employeeID)
	if err != nil {
		return nil, translate(fmt.Errorf("postgres: load sanctions: %w", err))
	}
	defer rows.Close()

	var out []attendance.Sanction
	for rows.Next() {
		var sn attendance.Sanction
		var typ, amount string
		if err := rows.Scan(&sn.ID, &sn.EmployeeID, &sn.AttendanceID, &typ, &amount, &sn.Date,
			&sn.Description, &sn.CreatedBy, &sn.Approved, &sn.CreatedAt); err != nil {
			return nil, translate(fmt.Errorf("postgres: scan sanction: %w", err))
		}
		sn.Type = attendance.SanctionType(typ)
		sn.Date = utcDay(sn.Date)
		sn.CreatedAt = sn.CreatedAt.UTC()
		if sn.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("postgres: sanction %s amount %q: %w", sn.ID, amount, err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

const (
	saveHolidaySQL = `
    INSERT INTO holidays (id, date, name, recurring)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (id) DO UPDATE SET date = EXCLUDED.date, name = EXCLUDED.name, recurring = EXCLUDED.recurring`

	listHolidaysSQL = `
    SELECT id, date, name, recurring
      FROM holidays
     ORDER BY date, id`
)

func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	if _, err := s.q(ctx).Exec(ctx, saveHolidaySQL, h.ID, h.Date, h.Name, h.Recurring); err != nil {
		return translate(fmt.Errorf("postgres: save holiday: %w", err))
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	rows, err := s.q(ctx).Query(ctx, listHolidaysSQL)
	if err != nil {
		return nil, translate(fmt.Errorf("postgres: list holidays: %w", err))
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.Recurring); err != nil {
			return nil, translate(fmt.Errorf("postgres: scan holiday: %w", err))
		}
		h.Date = utcDay(h.Date)
		out = append(out, h)
	}
	return out, rows.Err()
}
