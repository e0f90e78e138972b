package appointment

import (
	"context"
	"fmt"
	"time"
)

type View string

const (
	ViewDaily  View = "daily"
	ViewWeekly View = "weekly"
)

// CalendarStats are derived counts over the returned set, never stored.
// Cancelled appointments are excluded from the base set, so they have no
// bucket here.
type CalendarStats struct {
	Total      int
	Scheduled  int
	InProgress int
	Completed  int
	NoShow     int
}

type CalendarView struct {
	View         View
	Window       Window
	Appointments []Appointment
	Stats        CalendarStats
}

type CalendarQuery struct {
	View   View
	Anchor time.Time  // daily view day; zero means today
	Start  *time.Time // weekly view explicit range
	End    *time.Time
}

// Calendar produces the view-ready structure for a day or a week: the
// non-cancelled appointments in the window, sorted by date then time label,
// plus derived per-status counts. It is read-only.
func (s *Service) Calendar(ctx context.Context, q CalendarQuery) (*CalendarView, error) {
	var w Window
	switch q.View {
	case ViewDaily:
		anchor := q.Anchor
		if anchor.IsZero() {
			anchor = s.now()
		}
		w = DayWindow(anchor)
	case ViewWeekly:
		if q.Start != nil && q.End != nil {
			w = RangeWindow(*q.Start, *q.End)
		} else {
			w = WeekWindow(s.now())
		}
	default:
		return nil, &ValidationError{Field: "view", Reason: fmt.Sprintf("%q is not a valid view, expected daily or weekly", q.View)}
	}

	appts, err := s.repo.ListInWindow(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load calendar window: %w", err)
	}

	stats := CalendarStats{Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case StatusScheduled:
			stats.Scheduled++
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
		case StatusNoShow:
			stats.NoShow++
		}
	}

	return &CalendarView{
		View:         q.View,
		Window:       w,
		Appointments: appts,
		Stats:        stats,
	}, nil
}
