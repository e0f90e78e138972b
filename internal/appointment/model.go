package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Valid reports whether s is one of the known appointment statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether s permits no further status transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether an appointment in this status occupies its slot
// for conflict-checking purposes.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Appointment struct {
	ID            uuid.UUID
	PatientName   string
	Email         *string
	Phone         string
	HealthConcern string
	ServiceType   string
	Date          time.Time // day granularity, time-of-day ignored
	TimeLabel     string    // opaque label, e.g. "10:00 AM", compared by exact match
	Status        Status
	Notes         string
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	BookingID     *uuid.UUID
	StaffID       *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SlotKey returns the slot this appointment occupies.
func (a *Appointment) SlotKey() SlotKey {
	return NewSlotKey(a.Date, a.TimeLabel)
}

// Booking is a pre-appointment request submitted through the public site.
// It is independently lifecycled and may be promoted into an Appointment,
// which then holds a lookup-only reference back to it.
type Booking struct {
	ID              uuid.UUID
	Name            string
	Email           *string
	Phone           string
	PreferredDate   time.Time
	PreferredTime   string
	HealthConcern   string
	RequestCallback bool
	Status          BookingStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type StaffMember struct {
	ID        uuid.UUID
	Name      string
	Role      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detail is an appointment with its weak references resolved. A missing
// booking or staff member is not an error, the field is simply nil.
type Detail struct {
	Appointment
	Booking *Booking
	Staff   *StaffMember
}

// SlotKey identifies the (calendar date, time label) pair that must be unique
// among active appointments. The equality rule used for conflict detection
// lives here: the date is truncated to midnight and the label is compared
// verbatim.
type SlotKey struct {
	Date      time.Time
	TimeLabel string
}

func NewSlotKey(date time.Time, label string) SlotKey {
	y, m, d := date.Date()
	return SlotKey{
		Date:      time.Date(y, m, d, 0, 0, 0, 0, date.Location()),
		TimeLabel: label,
	}
}

// String renders the key in a stable form usable as a lock key.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s|%s", k.Date.Format("2006-01-02"), k.TimeLabel)
}

func (k SlotKey) Equal(other SlotKey) bool {
	return k.Date.Equal(other.Date) && k.TimeLabel == other.TimeLabel
}
