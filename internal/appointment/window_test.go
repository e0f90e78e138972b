package appointment

import (
	"testing"
	"time"
)

func TestDayWindow(t *testing.T) {
	anchor := time.Date(2026, 3, 11, 15, 42, 7, 123456789, time.UTC)
	w := DayWindow(anchor)

	wantStart := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 11, 23, 59, 59, 999000000, time.UTC)

	if !w.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", w.End, wantEnd)
	}
}

func TestWeekWindowFromMidweek(t *testing.T) {
	// 2026-03-11 is a Wednesday.
	anchor := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	w := WeekWindow(anchor)

	wantStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)  // Monday
	wantEnd := time.Date(2026, 3, 15, 23, 59, 59, 999000000, time.UTC) // Sunday

	if !w.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", w.End, wantEnd)
	}
}

func TestWeekWindowFromSunday(t *testing.T) {
	// 2026-03-15 is a Sunday; it belongs to the week starting Monday 03-09.
	anchor := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	w := WeekWindow(anchor)

	wantStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", w.Start, wantStart)
	}
}

func TestWeekWindowFromMonday(t *testing.T) {
	anchor := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	w := WeekWindow(anchor)

	if !w.Start.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monday anchor should start its own week, got %v", w.Start)
	}
}

func TestRangeWindowNormalizesToDayBounds(t *testing.T) {
	start := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	end := time.Date(2026, 3, 6, 4, 0, 0, 0, time.UTC)
	w := RangeWindow(start, end)

	if !w.Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", w.Start)
	}
	if !w.End.Equal(time.Date(2026, 3, 6, 23, 59, 59, 999000000, time.UTC)) {
		t.Errorf("end = %v", w.End)
	}
}

func TestWindowContains(t *testing.T) {
	w := DayWindow(time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC))

	if !w.Contains(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Error("window must contain its own start")
	}
	if !w.Contains(w.End) {
		t.Error("window must contain its own end")
	}
	if w.Contains(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)) {
		t.Error("window must not contain the next midnight")
	}
}
