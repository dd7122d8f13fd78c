/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine using SQLite. The
  postgres package implements the same interfaces; only the SQL dialect and
  driver differ.

INTERFACES IMPLEMENTED:
  ledger.Store:             movements
  attendance.Store:         attendance records
  attendance.EmployeeStore: employees
  attendance.SanctionStore: sanctions
  attendance.TxRunner:      units of work
  calendar.Store:           holidays

NO-DELETE ENFORCEMENT:
  There is no DELETE on the movements table. Voids are UPDATEs that flip the
  status to ANULADO. Attendance records can be deleted; their movement stays.

KEY TABLES:
  movements:  payroll ledger, one row per movement, meta as JSON
  attendance: logged shifts
  employees:  the subset of the employee the engine reads
  sanctions:  late-arrival sanctions created as a side effect
  holidays:   holiday calendar

INDEXES:
  - idx_movements_employee_created: history load (hot path)
  - idx_movements_active_attendance: at most one ACTIVE movement per
    attendance record, enforced by the database
  - idx_attendance_employee_date: calendar listing

TRANSACTIONS:
  WithTx stores the *sql.Tx in the context. Every method runs its query
  on the transaction found in its context, or on the pool otherwise, so
  code inside a unit of work needs no special store handle.

CONCURRENCY:
  The pool is limited to one connection. SQLite allows a single writer,
  and ":memory:" databases exist per connection. A busy database maps to
  ledger.ErrConcurrentModification, which callers may retry.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/memory:   in-memory implementation for tests
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/accrual"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/locale"
)

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ ledger.Store             = (*Store)(nil)
	_ attendance.Store         = (*Store)(nil)
	_ attendance.EmployeeStore = (*Store)(nil)
	_ attendance.SanctionStore = (*Store)(nil)
	_ attendance.TxRunner      = (*Store)(nil)
	_ calendar.Store           = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payroll ledger (no deletes; voids are updates)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		attendance_id TEXT,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		meta_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_movements_employee_created
		ON movements(employee_id, created_at DESC);

	-- CRITICAL: at most one ACTIVE movement per attendance record
	CREATE UNIQUE INDEX IF NOT EXISTS idx_movements_active_attendance
		ON movements(attendance_id)
		WHERE status = 'ACTIVE' AND attendance_id IS NOT NULL;

	-- Attendance records
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		overtime_hours TEXT NOT NULL DEFAULT '0',
		overtime_amount TEXT NOT NULL DEFAULT '0',
		reason TEXT NOT NULL DEFAULT '',
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		is_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_date
		ON attendance(employee_id, date);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		salary TEXT NOT NULL DEFAULT '',
		salary_period TEXT NOT NULL DEFAULT 'monthly',
		official_start TEXT NOT NULL DEFAULT '',
		official_end TEXT NOT NULL DEFAULT '',
		pay_modality TEXT NOT NULL DEFAULT 'accrual',
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Sanctions
	CREATE TABLE IF NOT EXISTS sanctions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		attendance_id TEXT,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sanctions_employee
		ON sanctions(employee_id);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction carried by ctx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx executes fn within a database transaction. Nested calls join the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// =============================================================================
// LEDGER (ledger.Store interface)
// =============================================================================

const movementColumns = `id, employee_id, attendance_id, type, amount, date, description, created_by, created_at, status, meta_json`

func (s *Store) InsertMovement(ctx context.Context, m ledger.Movement) error {
	meta, err := encodeMeta(m.Meta)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO movements (`+movementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID,
		m.EmployeeID,
		nullString(m.AttendanceID),
		string(m.Type),
		m.Amount.String(),
		locale.FormatDate(m.Date),
		m.Description,
		m.CreatedBy,
		formatTimestamp(m.CreatedAt),
		string(m.Status),
		meta,
	)
	if err != nil {
		if isUniqueIndexError(err) {
			return fmt.Errorf("%w: attendance %s", ledger.ErrDuplicateLink, m.AttendanceID)
		}
		return translate(fmt.Errorf("failed to insert movement: %w", err))
	}
	return nil
}

func (s *Store) UpdateMovement(ctx context.Context, m ledger.Movement) error {
	meta, err := encodeMeta(m.Meta)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE movements
		   SET amount = ?, date = ?, description = ?, status = ?, meta_json = ?
		 WHERE id = ?
	`,
		m.Amount.String(),
		locale.FormatDate(m.Date),
		m.Description,
		string(m.Status),
		meta,
		m.ID,
	)
	if err != nil {
		if isUniqueIndexError(err) {
			return fmt.Errorf("%w: attendance %s", ledger.ErrDuplicateLink, m.AttendanceID)
		}
		return translate(fmt.Errorf("failed to update movement: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrMovementNotFound, m.ID)
	}
	return nil
}

func (s *Store) GetMovement(ctx context.Context, id string) (*ledger.Movement, error) {
	return s.queryMovement(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = ?`, id)
}

func (s *Store) MovementsByEmployee(ctx context.Context, employeeID string) ([]ledger.Movement, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+movementColumns+`
		  FROM movements
		 WHERE employee_id = ?
		 ORDER BY created_at DESC, rowid DESC
	`, employeeID)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to load movements: %w", err))
	}
	defer rows.Close()

	var out []ledger.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ActiveMovementByAttendance(ctx context.Context, attendanceID string) (*ledger.Movement, error) {
	return s.queryMovement(ctx, `
		SELECT `+movementColumns+`
		  FROM movements
		 WHERE attendance_id = ? AND status = 'ACTIVE'
	`, attendanceID)
}

func (s *Store) queryMovement(ctx context.Context, query string, args ...any) (*ledger.Movement, error) {
	m, err := scanMovement(s.q(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovement(row scanner) (ledger.Movement, error) {
	var (
		m                  ledger.Movement
		attendanceID, meta sql.NullString
		typ, amount, date  string
		createdAt, status  string
	)
	err := row.Scan(&m.ID, &m.EmployeeID, &attendanceID, &typ, &amount, &date,
		&m.Description, &m.CreatedBy, &createdAt, &status, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, translate(fmt.Errorf("failed to scan movement: %w", err))
	}

	m.AttendanceID = attendanceID.String
	m.Type = ledger.MovementType(typ)
	m.Status = ledger.Status(status)
	if m.Amount, err = decimal.NewFromString(amount); err != nil {
		return m, fmt.Errorf("movement %s amount %q: %w", m.ID, amount, err)
	}
	if m.Date, err = locale.ParseDate(date); err != nil {
		return m, fmt.Errorf("movement %s date %q: %w", m.ID, date, err)
	}
	if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return m, fmt.Errorf("movement %s created_at %q: %w", m.ID, createdAt, err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &m.Meta); err != nil {
			return m, fmt.Errorf("movement %s meta: %w", m.ID, err)
		}
	}
	return m, nil
}

// =============================================================================
// ATTENDANCE (attendance.Store interface)
// =============================================================================

const recordColumns = `id, employee_id, date, check_in, check_out, overtime_hours, overtime_amount, reason, paid, is_holiday, created_by, status, created_at`

func (s *Store) InsertRecord(ctx context.Context, r attendance.Record) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO attendance (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.EmployeeID,
		locale.FormatDate(r.Date),
		r.CheckIn,
		r.CheckOut,
		r.OvertimeHours.String(),
		r.OvertimeAmount.String(),
		r.Reason,
		r.Paid,
		r.IsHoliday,
		r.CreatedBy,
		string(r.Status),
		formatTimestamp(r.CreatedAt),
	)
	if err != nil {
		return translate(fmt.Errorf("failed to insert attendance: %w", err))
	}
	return nil
}

func (s *Store) UpdateRecord(ctx context.Context, r attendance.Record) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE attendance
		   SET date = ?, check_in = ?, check_out = ?, overtime_hours = ?, overtime_amount = ?,
		       reason = ?, paid = ?, is_holiday = ?, status = ?
		 WHERE id = ?
	`,
		locale.FormatDate(r.Date),
		r.CheckIn,
		r.CheckOut,
		r.OvertimeHours.String(),
		r.OvertimeAmount.String(),
		r.Reason,
		r.Paid,
		r.IsHoliday,
		string(r.Status),
		r.ID,
	)
	if err != nil {
		return translate(fmt.Errorf("failed to update attendance: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", attendance.ErrRecordNotFound, r.ID)
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM attendance WHERE id = ?`, id)
	if err != nil {
		return translate(fmt.Errorf("failed to delete attendance: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", attendance.ErrRecordNotFound, id)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	r, err := scanRecord(s.q(ctx).QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRecords(ctx context.Context, f attendance.Filter) ([]attendance.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, locale.FormatDate(*f.From))
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, locale.FormatDate(*f.To))
	}
	query := `SELECT ` + recordColumns + ` FROM attendance`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, check_in, id`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list attendance: %w", err))
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

func scanRecord(row scanner) (attendance.Record, error) {
	var (
		r                   attendance.Record
		date, hours, amount string
		status, createdAt   string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &date, &r.CheckIn, &r.CheckOut, &hours, &amount,
		&r.Reason, &r.Paid, &r.IsHoliday, &r.CreatedBy, &status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, translate(fmt.Errorf("failed to scan attendance: %w", err))
	}

	r.Status = attendance.Status(status)
	if r.Date, err = locale.ParseDate(date); err != nil {
		return r, fmt.Errorf("attendance %s date %q: %w", r.ID, date, err)
	}
	if r.OvertimeHours, err = decimal.NewFromString(hours); err != nil {
		return r, fmt.Errorf("attendance %s overtime_hours %q: %w", r.ID, hours, err)
	}
	if r.OvertimeAmount, err = decimal.NewFromString(amount); err != nil {
		return r, fmt.Errorf("attendance %s overtime_amount %q: %w", r.ID, amount, err)
	}
	if r.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return r, fmt.Errorf("attendance %s created_at %q: %w", r.ID, createdAt, err)
	}
	return r, nil
}

// =============================================================================
// EMPLOYEES (attendance.EmployeeStore interface)
// =============================================================================

const employeeColumns = `id, name, salary, salary_period, official_start, official_end, pay_modality, active`

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, e attendance.Employee) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			salary = excluded.salary,
			salary_period = excluded.salary_period,
			official_start = excluded.official_start,
			official_end = excluded.official_end,
			pay_modality = excluded.pay_modality,
			active = excluded.active
	`,
		e.ID,
		e.Name,
		e.Salary,
		string(e.SalaryPeriod),
		e.OfficialStart,
		e.OfficialEnd,
		string(e.PayModality),
		e.Active,
	)
	if err != nil {
		return translate(fmt.Errorf("failed to save employee: %w", err))
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*attendance.Employee, error) {
	e, err := scanEmployee(s.q(ctx).QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY name, id`)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list employees: %w", err))
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

func scanEmployee(row scanner) (attendance.Employee, error) {
	var e attendance.Employee
	var period, modality string
	err := row.Scan(&e.ID, &e.Name, &e.Salary, &period, &e.OfficialStart, &e.OfficialEnd, &modality, &e.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, translate(fmt.Errorf("failed to scan employee: %w", err))
	}
	e.SalaryPeriod = accrual.SalaryPeriod(period)
	e.PayModality = attendance.PayModality(modality)
	return e, nil
}

// =============================================================================
// SANCTIONS (attendance.SanctionStore interface)
// =============================================================================

func (s *Store) InsertSanction(ctx context.Context, sn attendance.Sanction) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sanctions
		(id, employee_id, attendance_id, type, amount, date, description, created_by, approved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sn.ID,
		sn.EmployeeID,
		nullString(sn.AttendanceID),
		string(sn.Type),
		sn.Amount.String(),
		locale.FormatDate(sn.Date),
		sn.Description,
		sn.CreatedBy,
		sn.Approved,
		formatTimestamp(sn.CreatedAt),
	)
	if err != nil {
		return translate(fmt.Errorf("failed to insert sanction: %w", err))
	}
	return nil
}

func (s *Store) SanctionsByEmployee(ctx context.Context, employeeID string) ([]attendance.Sanction, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, employee_id, attendance_id, type, amount, date, description, created_by, approved, created_at
		  FROM sanctions
		 WHERE employee_id = ?
		 ORDER BY created_at, rowid
	`, employeeID)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to load sanctions: %w", err))
	}
	defer rows.Close()

	var out []attendance.Sanction
	for rows.Next() {
		var (
			sn                           attendance.Sanction
			attendanceID                 sql.NullString
			typ, amount, date, createdAt string
		)
		if err := rows.Scan(&sn.ID, &sn.EmployeeID, &attendanceID, &typ, &amount, &date,
			&sn.Description, &sn.CreatedBy, &sn.Approved, &createdAt); err != nil {
			return nil, translate(fmt.Errorf("failed to scan sanction: %w", err))
		}
		sn.AttendanceID = attendanceID.String
		sn.Type = attendance.SanctionType(typ)
		if sn.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("sanction %s amount %q: %w", sn.ID, amount, err)
		}
		if sn.Date, err = locale.ParseDate(date); err != nil {
			return nil, fmt.Errorf("sanction %s date %q: %w", sn.ID, date, err)
		}
		if sn.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("sanction %s created_at %q: %w", sn.ID, createdAt, err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS (calendar.Store interface)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`, h.ID, locale.FormatDate(h.Date), h.Name, h.Recurring)
	if err != nil {
		return translate(fmt.Errorf("failed to save holiday: %w", err))
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT id, date, name, recurring FROM holidays ORDER BY date, id`)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list holidays: %w", err))
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, translate(fmt.Errorf("failed to scan holiday: %w", err))
		}
		if h.Date, err = locale.ParseDate(date); err != nil {
			return nil, fmt.Errorf("holiday %s date %q: %w", h.ID, date, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func encodeMeta(meta map[string]string) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode meta: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// isUniqueIndexError reports a violated UNIQUE index (not the primary key).
func isUniqueIndexError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// translate marks a busy or locked database as a retryable conflict.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", ledger.ErrConcurrentModification, err)
	}
	return err
}
