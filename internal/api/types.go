package api

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/clinicdesk/clinic-booking/internal/booking"
)

type CreateAppointmentRequest struct {
	PatientID          int64  `json:"patientId" validate:"required"`
	AppointmentType    string `json:"appointmentType" validate:"required"`
	AppointmentFor     string `json:"appointmentFor" validate:"required"`
	AppointmentForName string `json:"appointmentForName" validate:"required,person_name"`
	AppointmentForAge  string `json:"appointmentForAge" validate:"omitempty,age_range"`
	Symptom            string `json:"symptom" validate:"required"`
	OtherSymptoms      string `json:"otherSymptoms" validate:"omitempty,max=255"`
	AppointmentDate    string `json:"appointmentDate" validate:"required,datetime=2006-01-02"`
	ClinicID           string `json:"clinicId" validate:"required,number"`
	DoctorID           string `json:"doctorId" validate:"required"`
	SlotID             string `json:"slotId" validate:"required,number"`
}

type AppointmentResponse struct {
	AppointmentID      int64   `json:"appointmentId"`
	PatientID          int64   `json:"patientId"`
	ClinicID           int     `json:"clinicId"`
	DoctorID           string  `json:"doctorId"`
	SlotID             *int64  `json:"slotId,omitempty"`
	AppointmentDate    string  `json:"appointmentDate"`
	AppointmentType    string  `json:"appointmentType"`
	AppointmentFor     string  `json:"appointmentFor"`
	AppointmentForName string  `json:"appointmentForName"`
	AppointmentForAge  *int    `json:"appointmentForAge,omitempty"`
	Symptom            string  `json:"symptom"`
	OtherSymptoms      *string `json:"otherSymptoms,omitempty"`
	Active             bool    `json:"active"`
	DoctorName         string  `json:"doctorName,omitempty"`
	ClinicName         string  `json:"clinicName,omitempty"`
	SlotTime           string  `json:"slotTime,omitempty"`
}

type AvailableDatesResponse struct {
	ClinicID int      `json:"clinicId"`
	DoctorID string   `json:"doctorId"`
	Dates    []string `json:"dates"`
}

type AvailableSlotsResponse struct {
	ClinicID       int                             `json:"clinicId"`
	DoctorID       string                          `json:"doctorId"`
	Date           string                          `json:"date"`
	AvailableSlots map[string][]booking.SlotOption `json:"availableSlots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var validate *validator.Validate

var (
	personNameRe = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	ageRangeRe   = regexp.MustCompile(`^(0|[1-9]\d?|1[01]\d|110)$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("age_range", func(fl validator.FieldLevel) bool {
		return ageRangeRe.MatchString(fl.Field().String())
	})
}

func appointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		AppointmentID:      a.ID,
		PatientID:          a.PatientID,
		ClinicID:           a.ClinicID,
		DoctorID:           a.DoctorID,
		SlotID:             a.SlotID,
		AppointmentDate:    a.Date.Format("2006-01-02"),
		AppointmentType:    string(a.Type),
		AppointmentFor:     string(a.For),
		AppointmentForName: a.ForName,
		AppointmentForAge:  a.ForAge,
		Symptom:            string(a.Symptom),
		OtherSymptoms:      a.OtherSymptoms,
		Active:             a.Active,
	}
}

func appointmentViewResponse(v booking.AppointmentView) AppointmentResponse {
	resp := appointmentResponse(&v.Appointment)
	resp.DoctorName = v.DoctorName
	resp.ClinicName = v.ClinicName
	resp.SlotTime = v.SlotTime
	return resp
}
