package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/ledger"
)

const movementSelect = `
    SELECT id, employee_id, COALESCE(attendance_id, ''), type, amount::text, date,
           description, created_by, created_at, status, COALESCE(meta::text, '')
      FROM movements`

const (
	insertMovementSQL = `
    INSERT INTO movements (id, employee_id, attendance_id, type, amount, date, description, created_by, created_at, status, meta)
    VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11::jsonb)`

	updateMovementSQL = `
    UPDATE movements
       SET amount = $1::numeric, date = $2, description = $3, status = $4, meta = $5::jsonb
     WHERE id = $6`

	getMovementSQL = movementSelect + `
     WHERE id = $1`

	movementsByEmployeeSQL = movementSelect + `
     WHERE employee_id = $1
     ORDER BY created_at DESC, id DESC`

	activeMovementByAttendanceSQL = movementSelect + `
     WHERE attendance_id = $1 AND status = 'ACTIVE'`
)

func (s *Store) InsertMovement(ctx context.Context, m ledger.Movement) error {
	meta, err := encodeMeta(m.Meta)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).Exec(ctx, insertMovementSQL,
		m.ID,
		m.EmployeeID,
		nullable(m.AttendanceID),
		string(m.Type),
		m.Amount.String(),
		m.Date,
		m.Description,
		m.CreatedBy,
		m.CreatedAt.UTC(),
		string(m.Status),
		meta,
	)
	if err != nil {
		return translate(fmt.Errorf("postgres: insert movement: %w", err))
	}
	return nil
}

func (s *Store) UpdateMovement(ctx context.Context, m ledger.Movement) error {
	meta, err := encodeMeta(m.Meta)
	if err != nil {
		return err
	}
	tag, err := s.q(ctx).Exec(ctx, updateMovementSQL,
		m.Amount.String(),
		m.Date,
		m.Description,
		string(m.Status),
		meta,
		m.ID,
	)
	if err != nil {
		return translate(fmt.Errorf("postgres: update movement: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrMovementNotFound, m.ID)
	}
	return nil
}

func (s *Store) GetMovement(ctx context.Context, id string) (*ledger.Movement, error) {
	return s.queryMovement(ctx, getMovementSQL, id)
}

func (s *Store) ActiveMovementByAttendance(ctx context.Context, attendanceID string) (*ledger.Movement, error) {
	return s.queryMovement(ctx, activeMovementByAttendanceSQL, attendanceID)
}

func (s *Store) MovementsByEmployee(ctx context.Context, employeeID string) ([]ledger.Movement, error) {
	rows, err := s.q(ctx).Query(ctx, movementsByEmployeeSQL, employeeID)
	if err != nil {
		return nil, translate(fmt.Errorf("postgres: load movements: %w", err))
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

func (s *Store) queryMovement(ctx context.Context, query string, args ...any) (*ledger.Movement, error) {
	m, err := scanMovement(s.q(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMovement(row pgx.Row) (ledger.Movement, error) {
	var (
		m                         ledger.Movement
		typ, amount, status, meta string
	)
	err := row.Scan(&m.ID, &m.EmployeeID, &m.AttendanceID, &typ, &amount, &m.Date,
		&m.Description, &m.CreatedBy, &m.CreatedAt, &status, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return m, err
		}
		return m, translate(fmt.Errorf("postgres: scan movement: %w", err))
	}

	m.Type = ledger.MovementType(typ)
	m.Status = ledger.Status(status)
	m.Date = utcDay(m.Date)
	m.CreatedAt = m.CreatedAt.UTC()
	if m.Amount, err = decimal.NewFromString(amount); err != nil {
		return m, fmt.Errorf("postgres: movement %s amount %q: %w", m.ID, amount, err)
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &m.Meta); err != nil {
			return m, fmt.Errorf("postgres: movement %s meta: %w", m.ID, err)
		}
	}
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeMeta(meta map[string]string) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode meta: %w", err)
	}
	return string(b), nil
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
