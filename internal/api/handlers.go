package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-booking/internal/booking"
)

// BookingService is the orchestrator surface the handlers need. Narrow on
// purpose so tests can stub it.
type BookingService interface {
	BookAppointment(ctx context.Context, req booking.BookingRequest) (*booking.Appointment, error)
	ListAppointmentsForPatient(ctx context.Context, patientID int64) ([]booking.AppointmentView, error)
	AvailableDates(ctx context.Context, clinicID int, doctorID string) ([]time.Time, error)
	AvailableSlots(ctx context.Context, clinicID int, doctorID string, date time.Time) (map[string][]booking.SlotOption, error)
	CancelAppointment(ctx context.Context, id int64) error
}

func createAppointmentHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", validationDetails(err))
			return
		}

		bookingReq, err := toBookingRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		appt, err := svc.BookAppointment(r.Context(), bookingReq)
		if err != nil {
			handleBookingError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func listAppointmentsByPatientHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := strconv.ParseInt(chi.URLParam(r, "patientId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be numeric")
			return
		}

		views, err := svc.ListAppointmentsForPatient(r.Context(), patientID)
		if err != nil {
			handleBookingError(w, r, err, logger)
			return
		}

		resp := make([]AppointmentResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, appointmentViewResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be numeric")
			return
		}

		if err := svc.CancelAppointment(r.Context(), id); err != nil {
			handleBookingError(w, r, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func availableDatesHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, doctorID, ok := clinicDoctorParams(w, r)
		if !ok {
			return
		}

		dates, err := svc.AvailableDates(r.Context(), clinicID, doctorID)
		if err != nil {
			handleBookingError(w, r, err, logger)
			return
		}

		formatted := make([]string, 0, len(dates))
		for _, d := range dates {
			formatted = append(formatted, d.Format("2006-01-02"))
		}
		writeJSON(w, http.StatusOK, AvailableDatesResponse{
			ClinicID: clinicID,
			DoctorID: doctorID,
			Dates:    formatted,
		})
	}
}

func availableSlotsHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, doctorID, ok := clinicDoctorParams(w, r)
		if !ok {
			return
		}

		date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		grouped, err := svc.AvailableSlots(r.Context(), clinicID, doctorID, date)
		if err != nil {
			handleBookingError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, AvailableSlotsResponse{
			ClinicID:       clinicID,
			DoctorID:       doctorID,
			Date:           date.Format("2006-01-02"),
			AvailableSlots: grouped,
		})
	}
}

func clinicDoctorParams(w http.ResponseWriter, r *http.Request) (int, string, bool) {
	clinicID, err := strconv.Atoi(r.URL.Query().Get("clinicId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicId must be numeric")
		return 0, "", false
	}
	doctorID := r.URL.Query().Get("doctorId")
	if doctorID == "" {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId is required")
		return 0, "", false
	}
	return clinicID, doctorID, true
}

// toBookingRequest finishes the validation the struct tags cannot express:
// enum membership, numeric id conversion, and the not-in-the-past date rule.
func toBookingRequest(req CreateAppointmentRequest) (booking.BookingRequest, error) {
	var out booking.BookingRequest

	apptType, err := booking.ParseAppointmentType(req.AppointmentType)
	if err != nil {
		return out, err
	}
	apptFor, err := booking.ParseAppointmentFor(req.AppointmentFor)
	if err != nil {
		return out, err
	}
	symptom, err := booking.ParseSymptom(req.Symptom)
	if err != nil {
		return out, err
	}

	date, err := time.ParseInLocation("2006-01-02", req.AppointmentDate, time.UTC)
	if err != nil {
		return out, errors.New("appointmentDate must be YYYY-MM-DD")
	}
	if date.Before(todayUTC()) {
		return out, errors.New("appointmentDate cannot be in the past")
	}

	clinicID, err := strconv.Atoi(req.ClinicID)
	if err != nil {
		return out, errors.New("clinicId must be numeric")
	}
	slotID, err := strconv.ParseInt(req.SlotID, 10, 64)
	if err != nil {
		return out, errors.New("slotId must be numeric")
	}

	out = booking.BookingRequest{
		PatientID: req.PatientID,
		SlotID:    slotID,
		ClinicID:  clinicID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Type:      apptType,
		For:       apptFor,
		ForName:   req.AppointmentForName,
		Symptom:   symptom,
	}
	if req.AppointmentForAge != "" {
		age, err := strconv.Atoi(req.AppointmentForAge)
		if err != nil {
			return out, errors.New("appointmentForAge must be a number between 0 and 110")
		}
		out.ForAge = &age
	}
	if req.OtherSymptoms != "" {
		other := req.OtherSymptoms
		out.OtherSymptoms = &other
	}
	return out, nil
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotMismatch):
		writeError(w, http.StatusBadRequest, "slot_mismatch", err.Error())
	case errors.Is(err, booking.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrDailyCapExceeded):
		writeError(w, http.StatusConflict, "daily_cap_exceeded", err.Error())
	case errors.Is(err, booking.ErrAppointmentInactive):
		writeError(w, http.StatusConflict, "appointment_inactive", err.Error())
	default:
		logger.Error("unhandled booking error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		switch f.Tag() {
		case "person_name":
			return "appointmentForName can only contain letters, spaces, hyphens, and apostrophes"
		case "age_range":
			return "appointmentForAge must be a number between 0 and 110"
		case "datetime":
			return f.Field() + " must be YYYY-MM-DD"
		case "number":
			return f.Field() + " must be numeric"
		default:
			return f.Field() + " failed on the '" + f.Tag() + "' rule"
		}
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
