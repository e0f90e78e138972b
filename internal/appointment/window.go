package appointment

import "time"

// Window is a closed day-aligned range used for calendar queries.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// DayWindow returns the 00:00:00.000-23:59:59.999 window of the anchor's day.
func DayWindow(anchor time.Time) Window {
	return Window{Start: dayStart(anchor), End: dayEnd(anchor)}
}

// WeekWindow returns the ISO week containing the anchor: Monday 00:00:00.000
// through Sunday 23:59:59.999. Monday is day 1; Sunday wraps back six days.
func WeekWindow(anchor time.Time) Window {
	wd := int(anchor.Weekday())
	if wd == 0 {
		wd = 7
	}
	monday := dayStart(anchor).AddDate(0, 0, 1-wd)
	return Window{Start: monday, End: dayEnd(monday.AddDate(0, 0, 6))}
}

// RangeWindow normalizes an explicit start/end pair to day boundaries.
func RangeWindow(start, end time.Time) Window {
	return Window{Start: dayStart(start), End: dayEnd(end)}
}
