package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrStaffNotFound       = errors.New("staff member not found")

	// ErrSlotTaken is returned by the store when the active-slot uniqueness
	// constraint rejects a write. The richer ConflictError is preferred when
	// the occupying appointment is known.
	ErrSlotTaken = errors.New("time slot is already booked")
)

// ListParams are the supported read filters: status, free-text search across
// patient name/phone/service type/email, a phone-specific filter, a date
// range, pagination and a sort specifier.
type ListParams struct {
	Status    *Status
	Search    string
	Phone     string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
	SortBy    string
	SortDesc  bool
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error)
	List(ctx context.Context, p ListParams) ([]Appointment, int, error)
	Update(ctx context.Context, a *Appointment) (*Appointment, error)

	// UpdateStatusMany applies the same status and stamps to every given
	// appointment in one multi-record update.
	UpdateStatusMany(ctx context.Context, ids []uuid.UUID, status Status, completedAt, cancelledAt *time.Time) (int64, error)

	// FindActiveBySlot returns the active appointment occupying the slot, if
	// any, skipping excludeID so a reschedule does not conflict with itself.
	FindActiveBySlot(ctx context.Context, key SlotKey, excludeID *uuid.UUID) (*Appointment, error)

	// ListInWindow returns non-cancelled appointments whose date falls in the
	// window, sorted by date then time label.
	ListInWindow(ctx context.Context, w Window) ([]Appointment, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error)
	GetStaffByID(ctx context.Context, id uuid.UUID) (*StaffMember, error)
}
