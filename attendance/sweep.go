package attendance

import "time"

// ConfirmElapsed promotes every SCHEDULED record dated today or earlier to
// CONFIRMED. It returns the full list with promotions applied and, as a
// second result, only the promoted records. The input is not modified.
//
// Running it again on its own output promotes nothing.
func ConfirmElapsed(records []Record, today time.Time) (all []Record, promoted []Record) {
	all = make([]Record, len(records))
	copy(all, records)

	for i := range all {
		if all[i].Status == StatusScheduled && !all[i].Date.After(today) {
			all[i].Status = StatusConfirmed
			promoted = append(promoted, all[i])
		}
	}
	return all, promoted
}

// statusFor returns the status a record dated day starts in.
func statusFor(day, today time.Time) Status {
	if day.After(today) {
		return StatusScheduled
	}
	return StatusConfirmed
}
