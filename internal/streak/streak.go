// Package streak counts consecutive journaling days.
//
// Calendar days are compared in UTC so the count does not depend on the
// machine's zone.
package streak

import "time"

// Next returns the streak after an entry dated next, given the current count
// and the date of the previous entry. A zero last means no previous entry.
func Next(count int, last time.Time, next time.Time) int {
	if last.IsZero() {
		return 1
	}
	switch daysBetween(last, next) {
	case 0:
		return count
	case 1:
		return count + 1
	default:
		return 1
	}
}

// Tracker holds process-lifetime streak state.
type Tracker struct {
	Count int
	Last  time.Time
}

// Record applies an entry date and returns the new count.
func (t *Tracker) Record(date time.Time) int {
	t.Count = Next(t.Count, t.Last, date)
	t.Last = date
	return t.Count
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from time.Time, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}
