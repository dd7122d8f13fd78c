package accrual

import (
	"strconv"
	"strings"
)

// MinutesPerDay is added to a negative duration to cross midnight.
const MinutesPerDay = 24 * 60

// MinutesOf parses "HH:mm" into minutes since midnight.
// Empty or malformed input yields 0.
func MinutesOf(hhmm string) int {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0
	}
	return hours*60 + minutes
}

// DurationMinutes returns the length of start..end in minutes.
// An end before the start is read as a shift crossing midnight.
func DurationMinutes(start, end string) int {
	d := MinutesOf(end) - MinutesOf(start)
	if d < 0 {
		d += MinutesPerDay
	}
	return d
}
