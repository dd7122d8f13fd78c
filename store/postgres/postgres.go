// Package postgres implements the engine's storage interfaces on
// PostgreSQL through pgx. Table layout matches the sqlite package; money
// is NUMERIC, dates are DATE and meta is JSONB.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
)

const (
	uniqueViolationCode      = "23505"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"

	activeAttendanceIndex = "idx_movements_active_attendance"
)

// Queryer is satisfied by pgx.Tx, *pgxpool.Pool and pgxmock pools.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool is a Queryer that can start transactions.
type Pool interface {
	Queryer
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store implements all storage interfaces on PostgreSQL.
type Store struct {
	pool Pool
}

var (
	_ ledger.Store             = (*Store)(nil)
	_ attendance.Store         = (*Store)(nil)
	_ attendance.EmployeeStore = (*Store)(nil)
	_ attendance.SanctionStore = (*Store)(nil)
	_ attendance.TxRunner      = (*Store)(nil)
	_ calendar.Store           = (*Store)(nil)
)

func New(pool Pool) *Store {
	return &Store{pool: pool}
}

// NewPool parses dsn, creates a pool and checks connectivity.
func NewPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS movements (
    id            TEXT PRIMARY KEY,
    employee_id   TEXT NOT NULL,
    attendance_id TEXT,
    type          TEXT NOT NULL,
    amount        NUMERIC NOT NULL,
    date          DATE NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    created_by    TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    status        TEXT NOT NULL DEFAULT 'ACTIVE',
    meta          JSONB
);
CREATE INDEX IF NOT EXISTS idx_movements_employee_created ON movements (employee_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_movements_active_attendance
    ON movements (attendance_id) WHERE status = 'ACTIVE' AND attendance_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS attendance (
    id              TEXT PRIMARY KEY,
    employee_id     TEXT NOT NULL,
    date            DATE NOT NULL,
    check_in        TEXT NOT NULL,
    check_out       TEXT NOT NULL,
    overtime_hours  NUMERIC NOT NULL DEFAULT 0,
    overtime_amount NUMERIC NOT NULL DEFAULT 0,
    reason          TEXT NOT NULL DEFAULT '',
    paid            BOOLEAN NOT NULL DEFAULT FALSE,
    is_holiday      BOOLEAN NOT NULL DEFAULT FALSE,
    created_by      TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attendance_employee_date ON attendance (employee_id, date);

CREATE TABLE IF NOT EXISTS employees (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    salary         TEXT NOT NULL DEFAULT '',
    salary_period  TEXT NOT NULL DEFAULT 'monthly',
    official_start TEXT NOT NULL DEFAULT '',
    official_end   TEXT NOT NULL DEFAULT '',
    pay_modality   TEXT NOT NULL DEFAULT 'accrual',
    active         BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS sanctions (
    id            TEXT PRIMARY KEY,
    employee_id   TEXT NOT NULL,
    attendance_id TEXT,
    type          TEXT NOT NULL,
    amount        NUMERIC NOT NULL,
    date          DATE NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    created_by    TEXT NOT NULL DEFAULT '',
    approved      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sanctions_employee ON sanctions (employee_id);

CREATE TABLE IF NOT EXISTS holidays (
    id        TEXT PRIMARY KEY,
    date      DATE NOT NULL,
    name      TEXT NOT NULL,
    recurring BOOLEAN NOT NULL DEFAULT FALSE
);
`

// translate maps PostgreSQL errors onto the engine's sentinels.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolationCode:
		if pgErr.ConstraintName == activeAttendanceIndex {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateLink, pgErr.Detail)
		}
	case serializationFailureCode, deadlockDetectedCode:
		return fmt.Errorf("%w: %w", ledger.ErrConcurrentModification, err)
	}
	return err
}
