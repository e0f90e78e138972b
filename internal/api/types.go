package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careflow/clinic-scheduling/internal/appointment"
)

const dateLayout = "2006-01-02"

type CreateAppointmentRequest struct {
	PatientName     string  `json:"patient_name"`
	Email           *string `json:"email,omitempty"`
	Phone           string  `json:"phone"`
	HealthConcern   string  `json:"health_concern,omitempty"`
	ServiceType     string  `json:"service_type,omitempty"`
	AppointmentDate string  `json:"appointment_date"`
	AppointmentTime string  `json:"appointment_time"`
	Notes           string  `json:"notes,omitempty"`
	StaffID         *string `json:"staff_id,omitempty"`
}

type UpdateAppointmentRequest struct {
	PatientName     *string `json:"patient_name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	HealthConcern   *string `json:"health_concern,omitempty"`
	ServiceType     *string `json:"service_type,omitempty"`
	AppointmentDate *string `json:"appointment_date,omitempty"`
	AppointmentTime *string `json:"appointment_time,omitempty"`
	Status          *string `json:"status,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	StaffID         *string `json:"staff_id,omitempty"`
}

type BulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

type ConvertBookingRequest struct {
	AppointmentDate string  `json:"appointment_date,omitempty"`
	AppointmentTime string  `json:"appointment_time,omitempty"`
	StaffID         *string `json:"staff_id,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientName     string     `json:"patient_name"`
	Email           *string    `json:"email,omitempty"`
	Phone           string     `json:"phone"`
	HealthConcern   string     `json:"health_concern,omitempty"`
	ServiceType     string     `json:"service_type,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	AppointmentTime string     `json:"appointment_time"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	StaffID         *uuid.UUID `json:"staff_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           *string   `json:"email,omitempty"`
	Phone           string    `json:"phone"`
	PreferredDate   string    `json:"preferred_date"`
	PreferredTime   string    `json:"preferred_time"`
	HealthConcern   string    `json:"health_concern,omitempty"`
	RequestCallback bool      `json:"request_callback"`
	Status          string    `json:"status"`
}

type StaffResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role *string   `json:"role,omitempty"`
}

type DetailResponse struct {
	AppointmentResponse
	Booking *BookingResponse `json:"booking,omitempty"`
	Staff   *StaffResponse   `json:"staff,omitempty"`
}

type ListResponse struct {
	Data  []AppointmentResponse `json:"data"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CalendarStatsResponse struct {
	Total      int `json:"total"`
	Scheduled  int `json:"scheduled"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	NoShow     int `json:"no_show"`
}

type CalendarResponse struct {
	View         string                `json:"view"`
	DateRange    DateRange             `json:"date_range"`
	Appointments []AppointmentResponse `json:"appointments"`
	Stats        CalendarStatsResponse `json:"stats"`
}

type BulkStatusResponse struct {
	UpdatedCount int64                 `json:"updated_count"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type ConflictInfo struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	Time          string    `json:"time"`
}

type ErrorResponse struct {
	Error      string        `json:"error"`
	Details    string        `json:"details,omitempty"`
	Conflict   *ConflictInfo `json:"conflict,omitempty"`
	Allowed    []string      `json:"allowed,omitempty"`
	InvalidIDs []string      `json:"invalid_ids,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientName:     a.PatientName,
		Email:           a.Email,
		Phone:           a.Phone,
		HealthConcern:   a.HealthConcern,
		ServiceType:     a.ServiceType,
		AppointmentDate: a.Date.Format(dateLayout),
		AppointmentTime: a.TimeLabel,
		Status:          string(a.Status),
		Notes:           a.Notes,
		CompletedAt:     a.CompletedAt,
		CancelledAt:     a.CancelledAt,
		BookingID:       a.BookingID,
		StaffID:         a.StaffID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(appts))
	for i, a := range appts {
		out[i] = toAppointmentResponse(a)
	}
	return out
}

func toDetailResponse(d *appointment.Detail) DetailResponse {
	resp := DetailResponse{AppointmentResponse: toAppointmentResponse(d.Appointment)}
	if d.Booking != nil {
		resp.Booking = &BookingResponse{
			ID:              d.Booking.ID,
			Name:            d.Booking.Name,
			Email:           d.Booking.Email,
			Phone:           d.Booking.Phone,
			PreferredDate:   d.Booking.PreferredDate.Format(dateLayout),
			PreferredTime:   d.Booking.PreferredTime,
			HealthConcern:   d.Booking.HealthConcern,
			RequestCallback: d.Booking.RequestCallback,
			Status:          string(d.Booking.Status),
		}
	}
	if d.Staff != nil {
		resp.Staff = &StaffResponse{
			ID:   d.Staff.ID,
			Name: d.Staff.Name,
			Role: d.Staff.Role,
		}
	}
	return resp
}
