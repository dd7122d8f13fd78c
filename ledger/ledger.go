package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoidNoteDeletedFromCalendar is the audit note written when the attendance
// record behind a movement is deleted.
const VoidNoteDeletedFromCalendar = "Asistencia borrada desde Calendario"

// =============================================================================
// LEDGER - local history + store, with explicit reconciliation
// =============================================================================

// Ledger keeps each employee's movement history in memory, most recent
// first, backed by a Store. The store is the source of truth: reads merge
// its current contents into the local copy, which only tracks sync state.
//
// Every mutation is applied locally first and marked SyncPending, then
// persisted. Success marks it SyncConfirmed. Failure rolls the local change
// back and returns a *PersistenceError, so local and persisted state never
// silently diverge.
//
// The mutex only guards the local history; it is never held across a store
// call.
type Ledger struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	histories map[string][]*entry
}

type entry struct {
	Movement
	sync SyncState
	rev  uint64
}

type Option func(*Ledger)

func WithLogger(log *slog.Logger) Option  { return func(l *Ledger) { l.log = log } }
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }
func WithIDs(newID func() string) Option  { return func(l *Ledger) { l.newID = newID } }

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		log:       slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
		histories: make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// =============================================================================
// READS
// =============================================================================

// History returns the employee's movements, most recent first, including
// voided ones. It rereads the store on every call, so writes made through
// another Ledger or process are visible; a local write still in flight is
// reported as staged.
func (l *Ledger) History(ctx context.Context, employeeID string) ([]Movement, error) {
	if err := l.refresh(ctx, employeeID); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.histories[employeeID]
	out := make([]Movement, len(h))
	for i, e := range h {
		out[i] = e.Movement.clone()
	}
	return out, nil
}

// SyncStateOf reports the local sync state of a movement, if it is cached.
func (l *Ledger) SyncStateOf(employeeID, movementID string) (SyncState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.histories[employeeID] {
		if e.ID == movementID {
			return e.sync, true
		}
	}
	return "", false
}

// MovementByAttendanceID returns the active movement linked to an
// attendance record, or nil.
func (l *Ledger) MovementByAttendanceID(ctx context.Context, attendanceID string) (*Movement, error) {
	return l.store.ActiveMovementByAttendance(ctx, attendanceID)
}

// Forget drops the cached history of an employee. The next read reloads
// it from the store. Used when an outer unit of work is rolled back.
func (l *Ledger) Forget(employeeID string) {
	l.mu.Lock()
	delete(l.histories, employeeID)
	l.mu.Unlock()
}

func (l *Ledger) ensureLoaded(ctx context.Context, employeeID string) error {
	l.mu.Lock()
	_, ok := l.histories[employeeID]
	l.mu.Unlock()
	if ok {
		return nil
	}

	movements, err := l.store.MovementsByEmployee(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("load ledger for %s: %w", employeeID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.histories[employeeID]; ok {
		return nil
	}
	h := make([]*entry, len(movements))
	for i, m := range movements {
		h[i] = &entry{Movement: m, sync: SyncConfirmed}
	}
	l.histories[employeeID] = h
	return nil
}

// refresh replaces the local history with the store's, keeping the sync
// state of known movements. Pending entries win over what the store says
// until their write settles.
func (l *Ledger) refresh(ctx context.Context, employeeID string) error {
	movements, err := l.store.MovementsByEmployee(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("load ledger for %s: %w", employeeID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	local := make(map[string]*entry, len(l.histories[employeeID]))
	for _, e := range l.histories[employeeID] {
		local[e.ID] = e
	}
	h := make([]*entry, 0, len(movements))
	for _, e := range l.histories[employeeID] {
		if e.sync == SyncPending && !containsID(movements, e.ID) {
			h = append(h, e)
		}
	}
	for _, m := range movements {
		e, ok := local[m.ID]
		switch {
		case !ok:
			e = &entry{Movement: m, sync: SyncConfirmed}
		case e.sync != SyncPending:
			e.Movement = m
		}
		h = append(h, e)
	}
	l.histories[employeeID] = h
	return nil
}

func containsID(movements []Movement, id string) bool {
	return slices.ContainsFunc(movements, func(m Movement) bool { return m.ID == id })
}

// =============================================================================
// WRITES
// =============================================================================

// AddMovement validates m, fills in ID, status, creation time and sign,
// prepends it to the employee's history and persists it.
func (l *Ledger) AddMovement(ctx context.Context, m Movement) (Movement, error) {
	if strings.TrimSpace(m.EmployeeID) == "" {
		return Movement{}, fmt.Errorf("%w: employee is required", ErrInvalidMovement)
	}
	if !m.Type.Valid() {
		return Movement{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, m.Type)
	}

	if m.ID == "" {
		m.ID = l.newID()
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = l.now().UTC()
	}
	if m.Date.IsZero() {
		y, mo, d := l.now().Date()
		m.Date = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	}
	m.Amount = m.Type.Normalize(m.Amount)
	m = m.clone()

	if m.IsLinked() && m.IsActive() {
		existing, err := l.store.ActiveMovementByAttendance(ctx, m.AttendanceID)
		if err != nil {
			return Movement{}, fmt.Errorf("check attendance link: %w", err)
		}
		if existing != nil {
			return Movement{}, fmt.Errorf("%w: attendance %s has movement %s", ErrDuplicateLink, m.AttendanceID, existing.ID)
		}
	}

	if err := l.ensureLoaded(ctx, m.EmployeeID); err != nil {
		return Movement{}, err
	}

	l.mu.Lock()
	e := &entry{Movement: m, sync: SyncPending}
	l.histories[m.EmployeeID] = slices.Insert(l.histories[m.EmployeeID], 0, e)
	l.mu.Unlock()

	if err := l.store.InsertMovement(ctx, m); err != nil {
		l.mu.Lock()
		l.histories[m.EmployeeID] = slices.DeleteFunc(l.histories[m.EmployeeID], func(x *entry) bool { return x == e })
		l.mu.Unlock()

		l.log.Warn("ledger insert rolled back",
			"movement_id", m.ID, "employee_id", m.EmployeeID, "sync", SyncRolledBack, "err", err)
		if errors.Is(err, ErrDuplicateLink) {
			return Movement{}, err
		}
		return Movement{}, &PersistenceError{Op: "insert", MovementID: m.ID, Err: err}
	}

	l.mu.Lock()
	e.sync = SyncConfirmed
	l.mu.Unlock()

	l.log.Debug("ledger movement added",
		"movement_id", m.ID, "employee_id", m.EmployeeID, "type", m.Type, "amount", m.Amount.String())
	return m.clone(), nil
}

// UpdateMovementByAttendanceID patches the active movement linked to
// attendanceID. It is a no-op returning nil when there is none.
func (l *Ledger) UpdateMovementByAttendanceID(ctx context.Context, attendanceID string, p Patch) (*Movement, error) {
	current, err := l.store.ActiveMovementByAttendance(ctx, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("find movement for attendance %s: %w", attendanceID, err)
	}
	if current == nil {
		return nil, nil
	}
	updated, err := l.write(ctx, *current, p.Apply(*current))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// VoidMovementByAttendanceID voids the active movement linked to
// attendanceID, replacing its description with note. Voiding twice is a
// no-op: the second call finds no active movement and returns nil.
func (l *Ledger) VoidMovementByAttendanceID(ctx context.Context, attendanceID, note string) (*Movement, error) {
	voided := StatusVoided
	return l.UpdateMovementByAttendanceID(ctx, attendanceID, Patch{Status: &voided, Description: &note})
}

// VoidMovement voids a movement by ID. Already voided movements are
// returned unchanged.
func (l *Ledger) VoidMovement(ctx context.Context, id, note string) (Movement, error) {
	current, err := l.store.GetMovement(ctx, id)
	if err != nil {
		return Movement{}, err
	}
	if current == nil {
		return Movement{}, fmt.Errorf("%w: %s", ErrMovementNotFound, id)
	}
	if !current.IsActive() {
		return *current, nil
	}
	voided := StatusVoided
	return l.write(ctx, *current, Patch{Status: &voided, Description: &note}.Apply(*current))
}

// Revert writes a previously read movement back as it was. Used to
// compensate a void whose surrounding operation failed.
func (l *Ledger) Revert(ctx context.Context, previous Movement) error {
	current, err := l.store.GetMovement(ctx, previous.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrMovementNotFound, previous.ID)
	}
	_, err = l.write(ctx, *current, previous)
	return err
}

// Reset appends a REINICIO marker. Movements created before it no longer
// count toward the pending balance.
func (l *Ledger) Reset(ctx context.Context, employeeID string, date time.Time, createdBy string) (Movement, error) {
	return l.AddMovement(ctx, Movement{
		EmployeeID:  employeeID,
		Type:        TypeReset,
		Amount:      decimal.Zero,
		Date:        date,
		Description: "Reinicio de saldo",
		CreatedBy:   createdBy,
	})
}

// write replaces before with after locally, persists it, and confirms or
// rolls back.
func (l *Ledger) write(ctx context.Context, before, after Movement) (Movement, error) {
	if err := l.ensureLoaded(ctx, after.EmployeeID); err != nil {
		return Movement{}, err
	}

	l.mu.Lock()
	e, rev := l.stage(after)
	l.mu.Unlock()

	if err := l.store.UpdateMovement(ctx, after); err != nil {
		l.mu.Lock()
		if e != nil && e.rev == rev {
			e.Movement = before.clone()
			e.sync = SyncConfirmed
		}
		l.mu.Unlock()

		l.log.Warn("ledger update rolled back",
			"movement_id", after.ID, "employee_id", after.EmployeeID, "sync", SyncRolledBack, "err", err)
		return Movement{}, &PersistenceError{Op: "update", MovementID: after.ID, Err: err}
	}

	l.mu.Lock()
	if e != nil && e.rev == rev {
		e.sync = SyncConfirmed
	}
	l.mu.Unlock()

	l.log.Debug("ledger movement updated",
		"movement_id", after.ID, "status", after.Status, "amount", after.Amount.String())
	return after.clone(), nil
}

// stage swaps in the pending version of m. Caller holds l.mu.
func (l *Ledger) stage(m Movement) (*entry, uint64) {
	for _, e := range l.histories[m.EmployeeID] {
		if e.ID == m.ID {
			e.rev++
			e.Movement = m.clone()
			e.sync = SyncPending
			return e, e.rev
		}
	}
	return nil, 0
}
