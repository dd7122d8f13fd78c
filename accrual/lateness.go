package accrual

import "strings"

// Lateness decides whether a check-in counts as a late arrival.
//
// A check-in is late when it falls strictly after Grace minutes past the
// scheduled start and strictly before Cap minutes past it. Anything at or
// beyond Cap is treated as a data-entry mistake, not lateness.
type Lateness struct {
	GraceMinutes int
	CapMinutes   int
}

// DefaultLateness is a 10 minute grace window capped at 4 hours.
var DefaultLateness = Lateness{GraceMinutes: 10, CapMinutes: 240}

// Check returns how many minutes late actualStart is against
// scheduledStart, and whether that counts as late. Empty times are never late.
func (l Lateness) Check(scheduledStart, actualStart string) (minutes int, late bool) {
	if strings.TrimSpace(scheduledStart) == "" || strings.TrimSpace(actualStart) == "" {
		return 0, false
	}
	scheduled := MinutesOf(scheduledStart)
	actual := MinutesOf(actualStart)
	if actual > scheduled+l.GraceMinutes && actual < scheduled+l.CapMinutes {
		return actual - scheduled, true
	}
	return 0, false
}

// IsLate applies DefaultLateness.
func IsLate(scheduledStart, actualStart string) bool {
	_, late := DefaultLateness.Check(scheduledStart, actualStart)
	return late
}
