package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careflow/clinic-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse(dateLayout, req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_date", "appointment_date must be YYYY-MM-DD")
			return
		}

		staffID, ok := parseOptionalUUID(w, req.StaffID, "staff_id")
		if !ok {
			return
		}

		appt, err := svc.Create(r.Context(), appointment.CreateParams{
			PatientName:   req.PatientName,
			Email:         req.Email,
			Phone:         req.Phone,
			HealthConcern: req.HealthConcern,
			ServiceType:   req.ServiceType,
			Date:          date,
			TimeLabel:     req.AppointmentTime,
			Notes:         req.Notes,
			StaffID:       staffID,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r)
		if !ok {
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		params := appointment.ListParams{
			Search:   q.Get("search"),
			Phone:    q.Get("phone"),
			SortBy:   q.Get("sort_by"),
			SortDesc: q.Get("sort_order") == "desc",
		}

		if v := q.Get("status"); v != "" {
			status := appointment.Status(v)
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown status filter")
				return
			}
			params.Status = &status
		}
		if v := q.Get("start_date"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
				return
			}
			params.StartDate = &t
		}
		if v := q.Get("end_date"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
				return
			}
			params.EndDate = &t
		}
		if v := q.Get("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				params.Page = n
			}
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				params.Limit = n
			}
		}

		appts, total, err := svc.List(r.Context(), params)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		page := params.Page
		if page <= 0 {
			page = 1
		}
		limit := params.Limit
		if limit <= 0 {
			limit = 20
		}

		writeJSON(w, http.StatusOK, ListResponse{
			Data:  toAppointmentResponses(appts),
			Total: total,
			Page:  page,
			Limit: limit,
		})
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params := appointment.UpdateParams{
			PatientName:   req.PatientName,
			Email:         req.Email,
			Phone:         req.Phone,
			HealthConcern: req.HealthConcern,
			ServiceType:   req.ServiceType,
			TimeLabel:     req.AppointmentTime,
			Notes:         req.Notes,
		}

		if req.AppointmentDate != nil {
			date, err := time.Parse(dateLayout, *req.AppointmentDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_date", "appointment_date must be YYYY-MM-DD")
				return
			}
			params.Date = &date
		}
		if req.Status != nil {
			status := appointment.Status(*req.Status)
			params.Status = &status
		}
		if req.StaffID != nil {
			staffID, ok := parseOptionalUUID(w, req.StaffID, "staff_id")
			if !ok {
				return
			}
			params.StaffID = staffID
		}

		appt, err := svc.Update(r.Context(), id, params)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

// Delete is a soft transition to cancelled, history is preserved.
func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func bulkStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ids := make([]uuid.UUID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "ids must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}

		result, err := svc.BulkUpdateStatus(r.Context(), ids, appointment.Status(req.Status))
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BulkStatusResponse{
			UpdatedCount: result.UpdatedCount,
			Appointments: toAppointmentResponses(result.Appointments),
		})
	}
}

func calendarHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		query := appointment.CalendarQuery{View: appointment.View(q.Get("view"))}
		if query.View == "" {
			query.View = appointment.ViewDaily
		}

		if v := q.Get("date"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			query.Anchor = t
		}
		if v := q.Get("start_date"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
				return
			}
			query.Start = &t
		}
		if v := q.Get("end_date"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
				return
			}
			query.End = &t
		}

		view, err := svc.Calendar(r.Context(), query)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CalendarResponse{
			View: string(view.View),
			DateRange: DateRange{
				Start: view.Window.Start,
				End:   view.Window.End,
			},
			Appointments: toAppointmentResponses(view.Appointments),
			Stats: CalendarStatsResponse{
				Total:      view.Stats.Total,
				Scheduled:  view.Stats.Scheduled,
				InProgress: view.Stats.InProgress,
				Completed:  view.Stats.Completed,
				NoShow:     view.Stats.NoShow,
			},
		})
	}
}

func convertBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r)
		if !ok {
			return
		}

		var req ConvertBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var date time.Time
		if req.AppointmentDate != "" {
			var err error
			date, err = time.Parse(dateLayout, req.AppointmentDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_date", "appointment_date must be YYYY-MM-DD")
				return
			}
		}

		staffID, ok := parseOptionalUUID(w, req.StaffID, "staff_id")
		if !ok {
			return
		}

		appt, err := svc.ConvertBooking(r.Context(), id, date, req.AppointmentTime, staffID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func parsePathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(w http.ResponseWriter, raw *string, field string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}

func handleDomainError(w http.ResponseWriter, err error) {
	var vErr *appointment.ValidationError
	var tErr *appointment.TransitionError
	var cErr *appointment.ConflictError
	var bErr *appointment.BulkRejectedError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_conflict",
			Details: cErr.Error(),
			Conflict: &ConflictInfo{
				AppointmentID: cErr.AppointmentID,
				PatientName:   cErr.PatientName,
				Time:          cErr.TimeLabel,
			},
		})
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_busy", "slot is currently being booked, please retry shortly")
	case errors.As(err, &tErr):
		allowed := make([]string, len(tErr.Legal))
		for i, s := range tErr.Legal {
			allowed[i] = string(s)
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "invalid_status_transition",
			Details: tErr.Error(),
			Allowed: allowed,
		})
	case errors.As(err, &bErr):
		ids := make([]string, len(bErr.InvalidIDs))
		for i, id := range bErr.InvalidIDs {
			ids[i] = id.String()
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:      "bulk_update_rejected",
			Details:    "batch contains completed or cancelled appointments",
			InvalidIDs: ids,
		})
	case errors.Is(err, appointment.ErrBookingNotPending):
		writeError(w, http.StatusConflict, "booking_not_pending", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, appointment.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
