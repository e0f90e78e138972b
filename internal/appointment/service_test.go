package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fixedNow is a Wednesday, which keeps weekly windows predictable.
var fixedNow = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, NewKeyedMutex(), zerolog.Nop()).WithClock(func() time.Time { return fixedNow })
	return svc, repo
}

func futureDate(days int) time.Time {
	return fixedNow.AddDate(0, 0, days)
}

func validCreateParams() CreateParams {
	return CreateParams{
		PatientName: "Amara Osei",
		Phone:       "555-0142",
		Date:        futureDate(2),
		TimeLabel:   "10:00 AM",
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateParams)
		field  string
	}{
		{"missing name", func(p *CreateParams) { p.PatientName = "" }, "patient_name"},
		{"missing phone", func(p *CreateParams) { p.Phone = "" }, "phone"},
		{"missing time", func(p *CreateParams) { p.TimeLabel = "" }, "appointment_time"},
		{"missing date", func(p *CreateParams) { p.Date = time.Time{} }, "appointment_date"},
		{"past date", func(p *CreateParams) { p.Date = fixedNow.AddDate(0, 0, -1) }, "appointment_date"},
		{"bad email", func(p *CreateParams) { e := "not-an-email"; p.Email = &e }, "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validCreateParams()
			tc.mutate(&p)

			_, err := svc.Create(ctx, p)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

func TestCreateTodayIsNotPast(t *testing.T) {
	svc, _ := newTestService(t)

	p := validCreateParams()
	p.Date = fixedNow // later the same day

	if _, err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("creating for today should succeed, got %v", err)
	}
}

func TestCreateScheduledWithNormalizedSlot(t *testing.T) {
	svc, _ := newTestService(t)

	p := validCreateParams()
	p.Date = time.Date(2026, 3, 13, 16, 20, 0, 0, time.UTC) // time-of-day must be dropped

	a, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", a.Status)
	}
	if !a.Date.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date not truncated to midnight: %v", a.Date)
	}
	if a.CompletedAt != nil || a.CancelledAt != nil {
		t.Error("fresh appointment must have no stamps")
	}
}

func TestCreateRejectsDoubleBooking(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	p := validCreateParams()
	p.PatientName = "Bram Jansen"
	p.Date = p.Date.Add(5 * time.Hour) // same calendar day

	_, err = svc.Create(ctx, p)
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cErr.AppointmentID != first.ID {
		t.Errorf("conflict id = %s, want %s", cErr.AppointmentID, first.ID)
	}
	if cErr.PatientName != "Amara Osei" || cErr.TimeLabel != "10:00 AM" {
		t.Errorf("conflict payload = %+v", cErr)
	}
	if !errors.Is(err, ErrSlotTaken) {
		t.Error("ConflictError should match ErrSlotTaken")
	}
}

func TestCreateAllowsDifferentLabelSameDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validCreateParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	p := validCreateParams()
	p.TimeLabel = "10:30 AM"
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("different label should not conflict: %v", err)
	}
}

func TestCreateUnknownStaffRejected(t *testing.T) {
	svc, _ := newTestService(t)

	p := validCreateParams()
	staffID := uuid.New()
	p.StaffID = &staffID

	_, err := svc.Create(context.Background(), p)
	if !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
}

func TestSlotReusableAfterCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	p := validCreateParams()
	p.PatientName = "Bram Jansen"
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("slot should be free after cancellation: %v", err)
	}
}

func TestSlotReusableAfterCompletion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	completed := StatusCompleted
	if _, err := svc.Update(ctx, a.ID, UpdateParams{Status: &completed}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	p := validCreateParams()
	p.PatientName = "Bram Jansen"
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("slot should be free after completion: %v", err)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inProgress := StatusInProgress
	a, err = svc.Update(ctx, a.ID, UpdateParams{Status: &inProgress})
	if err != nil {
		t.Fatalf("scheduled -> in-progress: %v", err)
	}
	if a.Status != StatusInProgress || a.CompletedAt != nil || a.CancelledAt != nil {
		t.Fatalf("unexpected state after check-in: %+v", a)
	}

	completed := StatusCompleted
	a, err = svc.Update(ctx, a.ID, UpdateParams{Status: &completed})
	if err != nil {
		t.Fatalf("in-progress -> completed: %v", err)
	}
	if a.CompletedAt == nil || !a.CompletedAt.Equal(fixedNow) {
		t.Errorf("completedAt = %v, want %v", a.CompletedAt, fixedNow)
	}
	if a.CancelledAt != nil {
		t.Errorf("cancelledAt should be nil, got %v", a.CancelledAt)
	}

	// Terminal: nothing more is allowed.
	cancelled := StatusCancelled
	_, err = svc.Update(ctx, a.ID, UpdateParams{Status: &cancelled})
	var tErr *TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransitionError on completed appointment, got %v", err)
	}
}

func TestUpdateSameStatusIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	scheduled := StatusScheduled
	notes := "patient called to confirm"
	a, err = svc.Update(ctx, a.ID, UpdateParams{Status: &scheduled, Notes: &notes})
	if err != nil {
		t.Fatalf("same-status update should succeed: %v", err)
	}
	if a.Notes != notes {
		t.Errorf("notes = %q", a.Notes)
	}
}

func TestUpdateInvalidStatusValue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bogus := Status("archived")
	_, err = svc.Update(ctx, a.ID, UpdateParams{Status: &bogus})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "status" {
		t.Fatalf("expected status ValidationError, got %v", err)
	}
}

func TestUpdateUnknownAppointment(t *testing.T) {
	svc, _ := newTestService(t)

	notes := "x"
	_, err := svc.Update(context.Background(), uuid.New(), UpdateParams{Notes: &notes})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestRescheduleExcludesSelf(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Moving to a later time and back onto the same day must not conflict
	// with the appointment's own slot.
	label := "11:00 AM"
	a, err = svc.Update(ctx, a.ID, UpdateParams{TimeLabel: &label})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if a.TimeLabel != "11:00 AM" {
		t.Errorf("label = %q", a.TimeLabel)
	}

	back := "10:00 AM"
	if _, err := svc.Update(ctx, a.ID, UpdateParams{TimeLabel: &back}); err != nil {
		t.Fatalf("reschedule back: %v", err)
	}
}

func TestRescheduleIntoOccupiedSlotRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validCreateParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	p := validCreateParams()
	p.PatientName = "Bram Jansen"
	p.TimeLabel = "2:00 PM"
	b, err := svc.Create(ctx, p)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	label := "10:00 AM"
	_, err = svc.Update(ctx, b.ID, UpdateParams{TimeLabel: &label})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestReschedulePastDateRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	past := fixedNow.AddDate(0, 0, -3)
	_, err = svc.Update(ctx, a.ID, UpdateParams{Date: &past})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "appointment_date" {
		t.Fatalf("expected past-date ValidationError, got %v", err)
	}
}

func TestNoShowRevivalChecksSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	noShow := StatusNoShow
	if _, err := svc.Update(ctx, a.ID, UpdateParams{Status: &noShow}); err != nil {
		t.Fatalf("mark no-show: %v", err)
	}

	// The freed slot gets taken by someone else.
	p := validCreateParams()
	p.PatientName = "Bram Jansen"
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("rebook freed slot: %v", err)
	}

	// Putting the no-show back on the schedule must now fail.
	scheduled := StatusScheduled
	_, err = svc.Update(ctx, a.ID, UpdateParams{Status: &scheduled})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError on revival into occupied slot, got %v", err)
	}
}

func TestNoShowRevivalIntoFreeSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	noShow := StatusNoShow
	if _, err := svc.Update(ctx, a.ID, UpdateParams{Status: &noShow}); err != nil {
		t.Fatalf("mark no-show: %v", err)
	}

	scheduled := StatusScheduled
	a, err = svc.Update(ctx, a.ID, UpdateParams{Status: &scheduled})
	if err != nil {
		t.Fatalf("revival: %v", err)
	}
	if a.Status != StatusScheduled || a.CompletedAt != nil || a.CancelledAt != nil {
		t.Errorf("unexpected state after revival: %+v", a)
	}
}

func TestCancelSetsStampAndIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	a, err = svc.Cancel(ctx, a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a.Status != StatusCancelled {
		t.Fatalf("status = %s", a.Status)
	}
	if a.CancelledAt == nil || !a.CancelledAt.Equal(fixedNow) {
		t.Errorf("cancelledAt = %v, want %v", a.CancelledAt, fixedNow)
	}

	again, err := svc.Cancel(ctx, a.ID)
	if err != nil {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}
	if again.Status != StatusCancelled || !again.CancelledAt.Equal(*a.CancelledAt) {
		t.Errorf("second cancel changed the record: %+v", again)
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	completed := StatusCompleted
	if _, err := svc.Update(ctx, a.ID, UpdateParams{Status: &completed}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err = svc.Cancel(ctx, a.ID)
	var tErr *TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestUpdateClearsStaffWithNilUUID(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	staff := StaffMember{ID: uuid.New(), Name: "Dr. Ferreira"}
	repo.AddStaff(staff)

	p := validCreateParams()
	p.StaffID = &staff.ID
	a, err := svc.Create(ctx, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.StaffID == nil || *a.StaffID != staff.ID {
		t.Fatalf("staff not assigned: %+v", a.StaffID)
	}

	nilID := uuid.Nil
	a, err = svc.Update(ctx, a.ID, UpdateParams{StaffID: &nilID})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if a.StaffID != nil {
		t.Errorf("staff should be cleared, got %v", a.StaffID)
	}
}

func TestGetResolvesReferences(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	staff := StaffMember{ID: uuid.New(), Name: "Dr. Ferreira"}
	repo.AddStaff(staff)
	booking := Booking{
		ID: uuid.New(), Name: "Amara Osei", Phone: "555-0142",
		PreferredDate: futureDate(2), PreferredTime: "10:00 AM",
		Status: BookingPending,
	}
	repo.AddBooking(booking)

	p := validCreateParams()
	p.StaffID = &staff.ID
	p.BookingID = &booking.ID
	a, err := svc.Create(ctx, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Staff == nil || d.Staff.Name != "Dr. Ferreira" {
		t.Errorf("staff not resolved: %+v", d.Staff)
	}
	if d.Booking == nil || d.Booking.ID != booking.ID {
		t.Errorf("booking not resolved: %+v", d.Booking)
	}
}

func TestConvertBookingDefaultsToPreferredSlot(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	booking := Booking{
		ID: uuid.New(), Name: "Amara Osei", Phone: "555-0142",
		PreferredDate: futureDate(3), PreferredTime: "2:00 PM",
		HealthConcern: "persistent headaches",
		Status:        BookingPending,
	}
	repo.AddBooking(booking)

	a, err := svc.ConvertBooking(ctx, booking.ID, time.Time{}, "", nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if a.TimeLabel != "2:00 PM" {
		t.Errorf("label = %q, want preferred", a.TimeLabel)
	}
	if !a.Date.Equal(dayStart(booking.PreferredDate)) {
		t.Errorf("date = %v, want preferred day", a.Date)
	}
	if a.BookingID == nil || *a.BookingID != booking.ID {
		t.Errorf("booking reference not kept: %v", a.BookingID)
	}

	b, err := repo.GetBookingByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	if b.Status != BookingConfirmed {
		t.Errorf("booking status = %s, want confirmed", b.Status)
	}
}

func TestConvertBookingNotPending(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	booking := Booking{
		ID: uuid.New(), Name: "Amara Osei", Phone: "555-0142",
		PreferredDate: futureDate(3), PreferredTime: "2:00 PM",
		Status:        BookingConfirmed,
	}
	repo.AddBooking(booking)

	_, err := svc.ConvertBooking(ctx, booking.ID, time.Time{}, "", nil)
	if !errors.Is(err, ErrBookingNotPending) {
		t.Fatalf("expected ErrBookingNotPending, got %v", err)
	}
}

func TestConvertBookingConflictLeavesBookingPending(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validCreateParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	booking := Booking{
		ID: uuid.New(), Name: "Bram Jansen", Phone: "555-0199",
		PreferredDate: futureDate(2), PreferredTime: "10:00 AM",
		Status:        BookingPending,
	}
	repo.AddBooking(booking)

	_, err := svc.ConvertBooking(ctx, booking.ID, time.Time{}, "", nil)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected conflict, got %v", err)
	}

	b, err := repo.GetBookingByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	if b.Status != BookingPending {
		t.Errorf("booking status = %s, want still pending", b.Status)
	}
}

func TestConcurrentCreatesOneWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := validCreateParams()
			_, results[i] = svc.Create(ctx, p)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != workers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, workers-1)
	}
}

func TestListPaginationDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	labels := []string{"9:00 AM", "9:30 AM", "10:00 AM"}
	for _, l := range labels {
		p := validCreateParams()
		p.TimeLabel = l
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", l, err)
		}
	}

	appts, total, err := svc.List(ctx, ListParams{Limit: 2, Page: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(appts) != 2 {
		t.Errorf("page size = %d, want 2", len(appts))
	}

	appts, _, err = svc.List(ctx, ListParams{Limit: 2, Page: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(appts) != 1 {
		t.Errorf("page 2 size = %d, want 1", len(appts))
	}
}

func TestListStatusFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p := validCreateParams()
	p.TimeLabel = "3:00 PM"
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := svc.Cancel(ctx, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cancelled := StatusCancelled
	appts, total, err := svc.List(ctx, ListParams{Status: &cancelled})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(appts) != 1 || appts[0].ID != a.ID {
		t.Errorf("filter returned %d/%d", len(appts), total)
	}
}
