package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/careflow/clinic-scheduling/internal/redis"
)

var (
	ErrSlotBusy          = errors.New("slot is currently being booked, please retry")
	ErrBookingNotPending = errors.New("booking has already been processed")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Service struct {
	repo   Repository
	locker Locker
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker Locker, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    logger,
		now:    time.Now,
	}
}

// WithClock replaces the wall clock, so past-date checks, stamps and default
// calendar windows are deterministic in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return dayStart(s.now())
}

type CreateParams struct {
	PatientName   string
	Email         *string
	Phone         string
	HealthConcern string
	ServiceType   string
	Date          time.Time
	TimeLabel     string
	Notes         string
	BookingID     *uuid.UUID
	StaffID       *uuid.UUID
}

func (p CreateParams) validate(today time.Time) error {
	if p.PatientName == "" {
		return &ValidationError{Field: "patient_name", Reason: "is required"}
	}
	if p.Phone == "" {
		return &ValidationError{Field: "phone", Reason: "is required"}
	}
	if p.TimeLabel == "" {
		return &ValidationError{Field: "appointment_time", Reason: "is required"}
	}
	if p.Date.IsZero() {
		return &ValidationError{Field: "appointment_date", Reason: "is required"}
	}
	if dayStart(p.Date).Before(today) {
		return &ValidationError{Field: "appointment_date", Reason: "must not be in the past"}
	}
	if p.Email != nil && *p.Email != "" && !emailPattern.MatchString(*p.Email) {
		return &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	return nil
}

// Create books a new appointment with status scheduled. The conflict check
// and the insert run inside a per-slot critical section so concurrent creates
// for the same slot cannot both pass the check.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Appointment, error) {
	if err := p.validate(s.today()); err != nil {
		return nil, err
	}

	if p.StaffID != nil {
		if _, err := s.repo.GetStaffByID(ctx, *p.StaffID); err != nil {
			if errors.Is(err, ErrStaffNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load staff member: %w", err)
		}
	}

	key := NewSlotKey(p.Date, p.TimeLabel)

	var created *Appointment
	err := s.locker.WithSlotLock(ctx, key.String(), func(lockCtx context.Context) error {
		if err := s.checkSlotFree(lockCtx, key, nil); err != nil {
			return err
		}

		a := &Appointment{
			ID:            uuid.New(),
			PatientName:   p.PatientName,
			Email:         p.Email,
			Phone:         p.Phone,
			HealthConcern: p.HealthConcern,
			ServiceType:   p.ServiceType,
			Date:          key.Date,
			TimeLabel:     key.TimeLabel,
			Status:        StatusScheduled,
			Notes:         p.Notes,
			BookingID:     p.BookingID,
			StaffID:       p.StaffID,
		}

		out, err := s.repo.Create(lockCtx, a)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = out
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	return created, nil
}

// checkSlotFree is the conflict detector: an active appointment on the same
// slot key is a conflict, excluding the appointment being rescheduled.
func (s *Service) checkSlotFree(ctx context.Context, key SlotKey, excludeID *uuid.UUID) error {
	existing, err := s.repo.FindActiveBySlot(ctx, key, excludeID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil
		}
		return fmt.Errorf("check slot: %w", err)
	}
	return &ConflictError{
		AppointmentID: existing.ID,
		PatientName:   existing.PatientName,
		TimeLabel:     existing.TimeLabel,
	}
}

type UpdateParams struct {
	PatientName   *string
	Email         *string
	Phone         *string
	HealthConcern *string
	ServiceType   *string
	Date          *time.Time
	TimeLabel     *string
	Status        *Status
	Notes         *string
	StaffID       *uuid.UUID
}

// Update mutates an appointment. Status changes go through the transition
// table; a date or time change, or a status change that re-enters the active
// set, re-runs the conflict check under the slot lock.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if p.Status != nil && !p.Status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not a valid status", *p.Status)}
	}
	statusChanging := p.Status != nil && *p.Status != a.Status
	if p.Status != nil {
		if err := ValidateTransition(a.Status, *p.Status); err != nil {
			return nil, err
		}
	}

	if p.PatientName != nil && *p.PatientName == "" {
		return nil, &ValidationError{Field: "patient_name", Reason: "is required"}
	}
	if p.Phone != nil && *p.Phone == "" {
		return nil, &ValidationError{Field: "phone", Reason: "is required"}
	}
	if p.TimeLabel != nil && *p.TimeLabel == "" {
		return nil, &ValidationError{Field: "appointment_time", Reason: "is required"}
	}
	if p.Email != nil && *p.Email != "" && !emailPattern.MatchString(*p.Email) {
		return nil, &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	if p.StaffID != nil && *p.StaffID != uuid.Nil {
		if _, err := s.repo.GetStaffByID(ctx, *p.StaffID); err != nil {
			if errors.Is(err, ErrStaffNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load staff member: %w", err)
		}
	}

	newDate := a.Date
	if p.Date != nil {
		newDate = *p.Date
	}
	newLabel := a.TimeLabel
	if p.TimeLabel != nil {
		newLabel = *p.TimeLabel
	}
	newKey := NewSlotKey(newDate, newLabel)
	slotChanging := !newKey.Equal(a.SlotKey())

	if slotChanging && newKey.Date.Before(s.today()) {
		return nil, &ValidationError{Field: "appointment_date", Reason: "must not be in the past"}
	}

	// A no-show put back on the schedule re-enters the active set, so its
	// slot must be free again.
	becomingActive := statusChanging && p.Status.Active() && !a.Status.Active()

	apply := func(applyCtx context.Context) error {
		if slotChanging || becomingActive {
			if err := s.checkSlotFree(applyCtx, newKey, &a.ID); err != nil {
				return err
			}
		}

		if p.PatientName != nil {
			a.PatientName = *p.PatientName
		}
		if p.Email != nil {
			a.Email = p.Email
		}
		if p.Phone != nil {
			a.Phone = *p.Phone
		}
		if p.HealthConcern != nil {
			a.HealthConcern = *p.HealthConcern
		}
		if p.ServiceType != nil {
			a.ServiceType = *p.ServiceType
		}
		if p.Notes != nil {
			a.Notes = *p.Notes
		}
		if p.StaffID != nil {
			if *p.StaffID == uuid.Nil {
				a.StaffID = nil
			} else {
				staffID := *p.StaffID
				a.StaffID = &staffID
			}
		}
		a.Date = newKey.Date
		a.TimeLabel = newKey.TimeLabel
		if statusChanging {
			applyStatus(a, *p.Status, now)
		}

		updated, err := s.repo.Update(applyCtx, a)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		a = updated
		return nil
	}

	if slotChanging || becomingActive {
		err = s.locker.WithSlotLock(ctx, newKey.String(), apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	return a, nil
}

// Cancel is the delete operation: appointments are never hard-deleted, they
// move to cancelled with a stamp. Cancelling an already cancelled appointment
// is a no-op; a completed one is rejected by the transition table.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	if err := ValidateTransition(a.Status, StatusCancelled); err != nil {
		return nil, err
	}

	applyStatus(a, StatusCancelled, s.now())

	updated, err := s.repo.Update(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	return updated, nil
}

// Get returns the appointment with its booking and staff references resolved.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, p ListParams) ([]Appointment, int, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	return s.repo.List(ctx, p)
}

// ConvertBooking promotes a pending booking into a scheduled appointment that
// keeps a lookup-only reference back to it. Date and time default to the
// booking's preferred slot. The booking is marked confirmed afterwards; the
// two records are independently lifecycled from then on.
func (s *Service) ConvertBooking(ctx context.Context, bookingID uuid.UUID, date time.Time, timeLabel string, staffID *uuid.UUID) (*Appointment, error) {
	b, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != BookingPending {
		return nil, ErrBookingNotPending
	}

	if date.IsZero() {
		date = b.PreferredDate
	}
	if timeLabel == "" {
		timeLabel = b.PreferredTime
	}

	ref := b.ID
	appt, err := s.Create(ctx, CreateParams{
		PatientName:   b.Name,
		Email:         b.Email,
		Phone:         b.Phone,
		HealthConcern: b.HealthConcern,
		Date:          date,
		TimeLabel:     timeLabel,
		BookingID:     &ref,
		StaffID:       staffID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.UpdateBookingStatus(ctx, b.ID, BookingConfirmed); err != nil {
		s.log.Warn().Err(err).
			Str("booking_id", b.ID.String()).
			Str("appointment_id", appt.ID.String()).
			Msg("appointment created but booking was not marked confirmed")
	}

	return appt, nil
}
