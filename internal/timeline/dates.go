package timeline

import "time"

// Urgency buckets for a critical date relative to today.
const (
	UrgencyGreen  = "green"
	UrgencyYellow = "yellow"
	UrgencyRed    = "red"
	UrgencyGray   = "gray"
)

const day = 24 * time.Hour

// Truncate normalizes a timestamp to day granularity (UTC midnight).
// Every comparison in this package goes through it; time-of-day never
// participates in a delta.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole-day delta from one calendar date to another.
// Negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(Truncate(to).Sub(Truncate(from)) / day)
}

// FormatDate renders a date the way the portal displays milestones.
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// UrgencyFor buckets a milestone by how far away it is. Past dates are gray
// regardless of magnitude; the 3- and 14-day boundaries are inclusive.
func UrgencyFor(daysAway int) string {
	switch {
	case daysAway < 0:
		return UrgencyGray
	case daysAway <= 3:
		return UrgencyRed
	case daysAway <= 14:
		return UrgencyYellow
	default:
		return UrgencyGreen
	}
}
