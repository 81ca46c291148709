package calendar

import "time"

// Clock returns the current time. Tests replace it to pin "today".
type Clock func() time.Time

// IsWorkingDay reports whether t falls on Monday through Friday.
// There is no holiday calendar.
func IsWorkingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// IsWeekend is the complement of IsWorkingDay.
func IsWeekend(t time.Time) bool {
	return !IsWorkingDay(t)
}

// NextWorkingDay rolls a weekend date forward to the following Monday.
// Weekday dates are returned unchanged.
func NextWorkingDay(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

// Date truncates t to midnight UTC of its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of clock(). A nil clock means time.Now.
func Today(clock Clock) time.Time {
	if clock == nil {
		clock = time.Now
	}
	return Date(clock())
}

// Parse parses a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Format renders t as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(time.DateOnly)
}
