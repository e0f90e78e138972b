package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `id, patient_name, email, phone, health_concern, service_type,
	appointment_date, appointment_time, status, notes,
	completed_at, cancelled_at, booking_id, staff_id, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientName,
		&a.Email,
		&a.Phone,
		&a.HealthConcern,
		&a.ServiceType,
		&a.Date,
		&a.TimeLabel,
		&a.Status,
		&a.Notes,
		&a.CompletedAt,
		&a.CancelledAt,
		&a.BookingID,
		&a.StaffID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Email,
		&b.Phone,
		&b.PreferredDate,
		&b.PreferredTime,
		&b.HealthConcern,
		&b.RequestCallback,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanStaff(row pgx.Row) (*StaffMember, error) {
	var m StaffMember
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Role,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return &m, nil
}

// isUniqueViolation reports whether err is the active-slot unique index
// rejecting a write, the store-level backstop for the conflict check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_name, email, phone, health_concern, service_type,
			appointment_date, appointment_time, status, notes,
			completed_at, cancelled_at, booking_id, staff_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+apptColumns+`
	`, a.ID, a.PatientName, a.Email, a.Phone, a.HealthConcern, a.ServiceType,
		a.Date, a.TimeLabel, a.Status, a.Notes,
		a.CompletedAt, a.CancelledAt, a.BookingID, a.StaffID)

	out, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{Appointment: *a}

	// Weak references: absence of a match is not an error.
	if a.BookingID != nil {
		b, err := r.GetBookingByID(ctx, *a.BookingID)
		if err != nil && !errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		d.Booking = b
	}
	if a.StaffID != nil {
		m, err := r.GetStaffByID(ctx, *a.StaffID)
		if err != nil && !errors.Is(err, ErrStaffNotFound) {
			return nil, err
		}
		d.Staff = m
	}

	return d, nil
}

func (r *PgRepository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

var listSortColumns = map[string]string{
	"appointment_date": "appointment_date",
	"created_at":       "created_at",
	"patient_name":     "patient_name",
	"status":           "status",
}

func (r *PgRepository) List(ctx context.Context, p ListParams) ([]Appointment, int, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointments WHERE 1=1`
	var args []any
	idx := 1

	if p.Status != nil {
		clause := fmt.Sprintf(` AND status = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, *p.Status)
		idx++
	}
	if p.Search != "" {
		clause := fmt.Sprintf(` AND (patient_name ILIKE $%d OR phone ILIKE $%d OR service_type ILIKE $%d OR email ILIKE $%d)`,
			idx, idx, idx, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+p.Search+"%")
		idx++
	}
	if p.Phone != "" {
		clause := fmt.Sprintf(` AND phone ILIKE $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+p.Phone+"%")
		idx++
	}
	if p.StartDate != nil {
		clause := fmt.Sprintf(` AND appointment_date >= $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, dayStart(*p.StartDate))
		idx++
	}
	if p.EndDate != nil {
		clause := fmt.Sprintf(` AND appointment_date <= $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, dayEnd(*p.EndDate))
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := listSortColumns[p.SortBy]
	if !ok {
		sortCol = "appointment_date"
	}
	dir := "ASC"
	if p.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s, appointment_time %s`, sortCol, dir, dir)

	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, p.Limit, (p.Page-1)*p.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_name = $2,
		    email = $3,
		    phone = $4,
		    health_concern = $5,
		    service_type = $6,
		    appointment_date = $7,
		    appointment_time = $8,
		    status = $9,
		    notes = $10,
		    completed_at = $11,
		    cancelled_at = $12,
		    staff_id = $13,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, a.ID, a.PatientName, a.Email, a.Phone, a.HealthConcern, a.ServiceType,
		a.Date, a.TimeLabel, a.Status, a.Notes,
		a.CompletedAt, a.CancelledAt, a.StaffID)

	out, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) UpdateStatusMany(ctx context.Context, ids []uuid.UUID, status Status, completedAt, cancelledAt *time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $1,
		    completed_at = $2,
		    cancelled_at = $3,
		    updated_at = now()
		WHERE id = ANY($4)
	`, status, completedAt, cancelledAt, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) FindActiveBySlot(ctx context.Context, key SlotKey, excludeID *uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE appointment_date = $1
		  AND appointment_time = $2
		  AND status IN ('scheduled', 'in-progress')
		  AND ($3::uuid IS NULL OR id <> $3)
		LIMIT 1
	`, key.Date, key.TimeLabel, excludeID)
	return scanAppointment(row)
}

func (r *PgRepository) ListInWindow(ctx context.Context, w Window) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		  AND status <> 'cancelled'
		ORDER BY appointment_date ASC, appointment_time ASC
	`, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

const bookingColumns = `id, name, email, phone, preferred_date, preferred_time,
	health_concern, request_callback, status, created_at, updated_at`

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id, status)
	return scanBooking(row)
}

func (r *PgRepository) GetStaffByID(ctx context.Context, id uuid.UUID) (*StaffMember, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, role, created_at, updated_at
		FROM staff_members
		WHERE id = $1
	`, id)
	return scanStaff(row)
}
