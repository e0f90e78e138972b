package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/clinic-scheduling/internal/appointment"
	"github.com/careflow/clinic-scheduling/internal/db"
)

var timeLabels = []string{
	"9:00 AM", "9:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"1:00 PM", "1:30 PM", "2:00 PM", "2:30 PM", "3:00 PM", "3:30 PM",
	"4:00 PM", "4:30 PM",
}

var serviceTypes = []string{
	"General Consultation",
	"Dental Checkup",
	"Eye Examination",
	"Physiotherapy",
	"Nutrition Counselling",
	"Mental Health Support",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	staffIDs, err := seedStaff(context.Background(), pool, 10)
	if err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	bookingIDs, err := seedBookings(context.Background(), pool, 60)
	if err != nil {
		log.Fatalf("seed bookings: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, 240, staffIDs, bookingIDs); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d staff members", count)

	roles := []string{"Physician", "Nurse", "Counsellor", "Dentist", "Optometrist"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		role := roles[gofakeit.Number(0, len(roles)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO staff_members (id, name, role, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, role)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("staff members seeded")
	return ids, nil
}

func seedBookings(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d bookings", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		email := gofakeit.Email()
		date := time.Now().AddDate(0, 0, gofakeit.Number(1, 21))
		label := timeLabels[gofakeit.Number(0, len(timeLabels)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, name, email, phone, preferred_date, preferred_time,
				health_concern, request_callback, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())
		`, id, gofakeit.Name(), email, gofakeit.Phone(), date, label,
			gofakeit.Sentence(8), gofakeit.Bool())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("bookings seeded")
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, count int, staffIDs, bookingIDs []uuid.UUID) error {
	log.Printf("seeding %d appointments", count)

	const batchSize = 100

	usedSlots := make(map[string]bool)
	seeded := 0

	for seeded < count {
		end := seeded + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := seeded; i < end; i++ {
			date := time.Now().AddDate(0, 0, gofakeit.Number(-30, 30))
			label := timeLabels[gofakeit.Number(0, len(timeLabels)-1)]
			status := pickStatus(date)

			// Active appointments must not collide on a slot.
			if status.Active() {
				key := appointment.NewSlotKey(date, label).String()
				if usedSlots[key] {
					continue
				}
				usedSlots[key] = true
			}

			var completedAt, cancelledAt *time.Time
			switch status {
			case appointment.StatusCompleted:
				completedAt = &date
			case appointment.StatusCancelled:
				cancelledAt = &date
			}

			var staffID *uuid.UUID
			if gofakeit.Bool() && len(staffIDs) > 0 {
				id := staffIDs[gofakeit.Number(0, len(staffIDs)-1)]
				staffID = &id
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, patient_name, email, phone, health_concern,
					service_type, appointment_date, appointment_time, status, notes,
					completed_at, cancelled_at, booking_id, staff_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', $10, $11, NULL, $12, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email(), gofakeit.Phone(),
				gofakeit.Sentence(6),
				serviceTypes[gofakeit.Number(0, len(serviceTypes)-1)],
				date, label, status, completedAt, cancelledAt, staffID)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		seeded = end
		log.Printf("appointments seeded: %d/%d", seeded, count)
	}

	fmt.Printf("seeded %d appointments across %d distinct active slots\n", count, len(usedSlots))
	return nil
}

func pickStatus(date time.Time) appointment.Status {
	if date.Before(time.Now().Truncate(24 * time.Hour)) {
		past := []appointment.Status{
			appointment.StatusCompleted,
			appointment.StatusCompleted,
			appointment.StatusCompleted,
			appointment.StatusCancelled,
			appointment.StatusNoShow,
		}
		return past[gofakeit.Number(0, len(past)-1)]
	}
	upcoming := []appointment.Status{
		appointment.StatusScheduled,
		appointment.StatusScheduled,
		appointment.StatusScheduled,
		appointment.StatusInProgress,
		appointment.StatusCancelled,
	}
	return upcoming[gofakeit.Number(0, len(upcoming)-1)]
}
