package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by the test suite and by
// local single-process setups. It mirrors the query semantics of the Postgres
// implementation, including the active-slot uniqueness backstop.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	bookings     map[uuid.UUID]*Booking
	staff        map[uuid.UUID]*StaffMember
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		bookings:     make(map[uuid.UUID]*Booking),
		staff:        make(map[uuid.UUID]*StaffMember),
		now:          time.Now,
	}
}

// AddBooking and AddStaff seed collaborator records.
func (r *MemoryRepository) AddBooking(b Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := b
	r.bookings[b.ID] = &cp
}

func (r *MemoryRepository) AddStaff(m StaffMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := m
	r.staff[m.ID] = &cp
}

func (r *MemoryRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Status.Active() {
		for _, other := range r.appointments {
			if other.Status.Active() && other.SlotKey().Equal(a.SlotKey()) {
				return nil, ErrSlotTaken
			}
		}
	}

	cp := *a
	now := r.now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.appointments[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *MemoryRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	d := &Detail{Appointment: *a}
	if a.BookingID != nil {
		if b, ok := r.bookings[*a.BookingID]; ok {
			cp := *b
			d.Booking = &cp
		}
	}
	if a.StaffID != nil {
		if m, ok := r.staff[*a.StaffID]; ok {
			cp := *m
			d.Staff = &cp
		}
	}
	return d, nil
}

func (r *MemoryRepository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, id := range ids {
		if a, ok := r.appointments[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) List(ctx context.Context, p ListParams) ([]Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Appointment
	for _, a := range r.appointments {
		if p.Status != nil && a.Status != *p.Status {
			continue
		}
		if p.Phone != "" && !strings.Contains(a.Phone, p.Phone) {
			continue
		}
		if p.Search != "" && !matchesSearch(a, p.Search) {
			continue
		}
		if p.StartDate != nil && a.Date.Before(dayStart(*p.StartDate)) {
			continue
		}
		if p.EndDate != nil && a.Date.After(dayEnd(*p.EndDate)) {
			continue
		}
		matched = append(matched, *a)
	}

	sortAppointments(matched, p.SortBy, p.SortDesc)

	total := len(matched)
	offset := (p.Page - 1) * p.Limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + p.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func matchesSearch(a *Appointment, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(a.PatientName), term) {
		return true
	}
	if strings.Contains(a.Phone, term) {
		return true
	}
	if strings.Contains(strings.ToLower(a.ServiceType), term) {
		return true
	}
	if a.Email != nil && strings.Contains(strings.ToLower(*a.Email), term) {
		return true
	}
	return false
}

func sortAppointments(appts []Appointment, sortBy string, desc bool) {
	less := func(i, j int) bool {
		a, b := appts[i], appts[j]
		switch sortBy {
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		case "patient_name":
			return a.PatientName < b.PatientName
		case "status":
			return a.Status < b.Status
		default:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.TimeLabel < b.TimeLabel
		}
	}
	if desc {
		sort.SliceStable(appts, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(appts, less)
	}
}

func (r *MemoryRepository) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	if a.Status.Active() {
		for _, other := range r.appointments {
			if other.ID != a.ID && other.Status.Active() && other.SlotKey().Equal(a.SlotKey()) {
				return nil, ErrSlotTaken
			}
		}
	}

	cp := *a
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = r.now()
	r.appointments[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (r *MemoryRepository) UpdateStatusMany(ctx context.Context, ids []uuid.UUID, status Status, completedAt, cancelledAt *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	now := r.now()
	for _, id := range ids {
		a, ok := r.appointments[id]
		if !ok {
			continue
		}
		a.Status = status
		a.CompletedAt = completedAt
		a.CancelledAt = cancelledAt
		a.UpdatedAt = now
		count++
	}
	return count, nil
}

func (r *MemoryRepository) FindActiveBySlot(ctx context.Context, key SlotKey, excludeID *uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.appointments {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Status.Active() && a.SlotKey().Equal(key) {
			out := *a
			return &out, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) ListInWindow(ctx context.Context, w Window) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusCancelled {
			continue
		}
		if w.Contains(a.Date) {
			out = append(out, *a)
		}
	}

	sortAppointments(out, "", false)
	return out, nil
}

func (r *MemoryRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

func (r *MemoryRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.Status = status
	b.UpdatedAt = r.now()
	out := *b
	return &out, nil
}

func (r *MemoryRepository) GetStaffByID(ctx context.Context, id uuid.UUID) (*StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.staff[id]
	if !ok {
		return nil, ErrStaffNotFound
	}
	out := *m
	return &out, nil
}
