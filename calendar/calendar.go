/*
Package calendar answers "is this date a holiday?".

Holiday shifts are paid with the holiday factor. The attendance form lets
the user tick "feriado" by hand; the calendar fills the gap when they
forget, so a shift on a registered holiday is priced as one either way.
*/
package calendar

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Holiday is a non-working day. Recurring holidays repeat on the same
// month and day every year.
type Holiday struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Name      string    `json:"name"`
	Recurring bool      `json:"recurring"`
}

// Matches reports whether the holiday falls on day.
func (h Holiday) Matches(day time.Time) bool {
	if h.Recurring {
		return h.Date.Month() == day.Month() && h.Date.Day() == day.Day()
	}
	hy, hm, hd := h.Date.Date()
	dy, dm, dd := day.Date()
	return hy == dy && hm == dm && hd == dd
}

// Calendar provides holiday lookups.
type Calendar interface {
	IsHoliday(ctx context.Context, day time.Time) (bool, error)
}

// Store persists holidays.
type Store interface {
	SaveHoliday(ctx context.Context, h Holiday) error
	ListHolidays(ctx context.Context) ([]Holiday, error)
}

// None is a calendar without holidays.
type None struct{}

func (None) IsHoliday(context.Context, time.Time) (bool, error) { return false, nil }

// StoreCalendar answers lookups from a Store.
type StoreCalendar struct {
	Store Store
}

func (c StoreCalendar) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	holidays, err := c.Store.ListHolidays(ctx)
	if err != nil {
		return false, err
	}
	return Contains(holidays, day), nil
}

// Contains reports whether any holiday falls on day.
func Contains(holidays []Holiday, day time.Time) bool {
	for _, h := range holidays {
		if h.Matches(day) {
			return true
		}
	}
	return false
}

// =============================================================================
// IN-MEMORY CALENDAR
// =============================================================================

// Memory is a mutex guarded holiday list, used in tests and as a default.
type Memory struct {
	mu       sync.RWMutex
	holidays []Holiday
}

func NewMemory(holidays ...Holiday) *Memory {
	return &Memory{holidays: holidays}
}

func (m *Memory) SaveHoliday(_ context.Context, h Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.holidays {
		if m.holidays[i].ID == h.ID {
			m.holidays[i] = h
			return nil
		}
	}
	m.holidays = append(m.holidays, h)
	return nil
}

func (m *Memory) ListHolidays(_ context.Context) ([]Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Holiday(nil), m.holidays...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	return StoreCalendar{Store: m}.IsHoliday(ctx, day)
}
