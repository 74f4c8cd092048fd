// Package fetch turns channel feeds into candidate videos published
// within the current day window.
package fetch

import "time"

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the calendar day containing now in the given
// location. A video published at 23:59 local time still counts for that
// day's window.
func DayWindow(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	return Window{
		Start: start,
		End:   start.AddDate(0, 0, 1),
	}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
