// Package memory provides in-memory implementations of every store the
// engine needs. For tests and local development.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store implements ledger.Store, attendance.Store, attendance.EmployeeStore,
// attendance.SanctionStore, calendar.Store and attendance.TxRunner.
type Store struct {
	mu   sync.RWMutex
	data state

	// txMu serializes units of work so a rollback never discards another
	// unit's writes.
	txMu sync.Mutex
}

type state struct {
	movements map[string]ledger.Movement
	order     []string // movement IDs in insertion order
	records   map[string]attendance.Record
	employees map[string]attendance.Employee
	sanctions []attendance.Sanction
	holidays  map[string]calendar.Holiday
}

func New() *Store {
	return &Store{data: state{
		movements: make(map[string]ledger.Movement),
		records:   make(map[string]attendance.Record),
		employees: make(map[string]attendance.Employee),
		holidays:  make(map[string]calendar.Holiday),
	}}
}

var (
	_ ledger.Store             = (*Store)(nil)
	_ attendance.Store         = (*Store)(nil)
	_ attendance.EmployeeStore = (*Store)(nil)
	_ attendance.SanctionStore = (*Store)(nil)
	_ attendance.TxRunner      = (*Store)(nil)
	_ calendar.Store           = (*Store)(nil)
)

// =============================================================================
// TRANSACTIONS (snapshot + restore)
// =============================================================================

// WithTx runs fn and restores the state from before it if fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (st state) clone() state {
	return state{
		movements: cloneMovements(st.movements),
		order:     slices.Clone(st.order),
		records:   maps.Clone(st.records),
		employees: maps.Clone(st.employees),
		sanctions: slices.Clone(st.sanctions),
		holidays:  maps.Clone(st.holidays),
	}
}

func cloneMovements(in map[string]ledger.Movement) map[string]ledger.Movement {
	out := make(map[string]ledger.Movement, len(in))
	for k, m := range in {
		m.Meta = maps.Clone(m.Meta)
		out[k] = m
	}
	return out
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) InsertMovement(_ context.Context, m ledger.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.movements[m.ID]; ok {
		return fmt.Errorf("movement %s already exists", m.ID)
	}
	if m.IsLinked() && m.IsActive() {
		for _, existing := range s.data.movements {
			if existing.AttendanceID == m.AttendanceID && existing.IsActive() {
				return ledger.ErrDuplicateLink
			}
		}
	}
	m.Meta = maps.Clone(m.Meta)
	s.data.movements[m.ID] = m
	s.data.order = append(s.data.order, m.ID)
	return nil
}

func (s *Store) UpdateMovement(_ context.Context, m ledger.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.movements[m.ID]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrMovementNotFound, m.ID)
	}
	m.Meta = maps.Clone(m.Meta)
	s.data.movements[m.ID] = m
	return nil
}

func (s *Store) GetMovement(_ context.Context, id string) (*ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data.movements[id]
	if !ok {
		return nil, nil
	}
	m.Meta = maps.Clone(m.Meta)
	return &m, nil
}

// MovementsByEmployee returns the history most recently created first.
// Ties keep reverse insertion order.
func (s *Store) MovementsByEmployee(_ context.Context, employeeID string) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Movement
	for i := len(s.data.order) - 1; i >= 0; i-- {
		m := s.data.movements[s.data.order[i]]
		if m.EmployeeID != employeeID {
			continue
		}
		m.Meta = maps.Clone(m.Meta)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ActiveMovementByAttendance(_ context.Context, attendanceID string) (*ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.data.movements {
		if m.AttendanceID == attendanceID && m.IsActive() {
			m.Meta = maps.Clone(m.Meta)
			return &m, nil
		}
	}
	return nil, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) InsertRecord(_ context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.records[r.ID]; ok {
		return fmt.Errorf("attendance record %s already exists", r.ID)
	}
	s.data.records[r.ID] = r
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.records[r.ID]; !ok {
		return fmt.Errorf("%w: %s", attendance.ErrRecordNotFound, r.ID)
	}
	s.data.records[r.ID] = r
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.records[id]; !ok {
		return fmt.Errorf("%w: %s", attendance.ErrRecordNotFound, id)
	}
	delete(s.data.records, id)
	return nil
}

func (s *Store) GetRecord(_ context.Context, id string) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) ListRecords(_ context.Context, f attendance.Filter) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Record
	for _, r := range s.data.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].CheckIn != out[j].CheckIn {
			return out[i].CheckIn < out[j].CheckIn
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(_ context.Context, e attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.employees[e.ID] = e
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.data.employees))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// SANCTIONS
// =============================================================================

func (s *Store) InsertSanction(_ context.Context, sn attendance.Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.sanctions = append(s.data.sanctions, sn)
	return nil
}

func (s *Store) SanctionsByEmployee(_ context.Context, employeeID string) ([]attendance.Sanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.Sanction
	for _, sn := range s.data.sanctions {
		if sn.EmployeeID == employeeID {
			out = append(out, sn)
		}
	}
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(_ context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.holidays[h.ID] = h
	return nil
}

func (s *Store) ListHolidays(_ context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.data.holidays))
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
