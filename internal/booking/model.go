package booking

import (
	"fmt"
	"strings"
	"time"
)

// Slot is one bookable clinic+doctor+date+time unit. Availability is the
// single flag the booking path contends on.
type Slot struct {
	ID         int64
	ClinicID   int
	DoctorID   string
	Date       time.Time // calendar date, midnight UTC
	TimeOfDay  string    // "HH:MM"
	ShiftLabel string    // free-text grouping, e.g. "Morning"
	Available  bool
	CreatedAt  time.Time
}

type Appointment struct {
	ID            int64
	PatientID     int64
	ClinicID      int
	DoctorID      string
	SlotID        *int64
	Date          time.Time // calendar date, midnight UTC
	Type          AppointmentType
	For           AppointmentFor
	ForName       string
	ForAge        *int
	Symptom       Symptom
	OtherSymptoms *string
	Active        bool
	CreatedAt     time.Time
}

// AppointmentView is an appointment enriched with display data for read
// responses. Enrichment fields stay empty when a directory lookup misses.
type AppointmentView struct {
	Appointment
	DoctorName string
	ClinicName string
	SlotTime   string // "HH:MM"
}

// SlotOption is one open slot entry in the grouped availability response.
type SlotOption struct {
	Time   string `json:"time"`
	SlotID int64  `json:"slotId,string"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentType string

const (
	TypeConsultation   AppointmentType = "CONSULTATION"
	TypeFollowUp       AppointmentType = "FOLLOW_UP"
	TypeRoutineCheckup AppointmentType = "ROUTINE_CHECKUP"
	TypeEmergency      AppointmentType = "EMERGENCY"
	TypeVaccination    AppointmentType = "VACCINATION"
	TypeDiagnosticTest AppointmentType = "DIAGNOSTIC_TEST"
	TypeProcedure      AppointmentType = "PROCEDURE"
	TypeOther          AppointmentType = "OTHER"
)

var appointmentTypes = map[AppointmentType]string{
	TypeConsultation:   "Consultation",
	TypeFollowUp:       "Follow-up",
	TypeRoutineCheckup: "Routine Checkup",
	TypeEmergency:      "Emergency",
	TypeVaccination:    "Vaccination",
	TypeDiagnosticTest: "Diagnostic Test",
	TypeProcedure:      "Procedure",
	TypeOther:          "Other",
}

func ParseAppointmentType(v string) (AppointmentType, error) {
	t, err := parseEnum(v, appointmentTypes)
	if err != nil {
		return "", fmt.Errorf("invalid appointment type %q", v)
	}
	return t, nil
}

type AppointmentFor string

const (
	ForSelf     AppointmentFor = "SELF"
	ForSpouse   AppointmentFor = "SPOUSE"
	ForChild    AppointmentFor = "CHILD"
	ForParent   AppointmentFor = "PARENT"
	ForSibling  AppointmentFor = "SIBLING"
	ForRelative AppointmentFor = "RELATIVE"
	ForFriend   AppointmentFor = "FRIEND"
	ForOther    AppointmentFor = "OTHER"
)

var appointmentFors = map[AppointmentFor]string{
	ForSelf:     "Self",
	ForSpouse:   "Spouse",
	ForChild:    "Child",
	ForParent:   "Parent",
	ForSibling:  "Sibling",
	ForRelative: "Relative",
	ForFriend:   "Friend",
	ForOther:    "Other",
}

func ParseAppointmentFor(v string) (AppointmentFor, error) {
	f, err := parseEnum(v, appointmentFors)
	if err != nil {
		return "", fmt.Errorf("invalid 'appointment for' value %q", v)
	}
	return f, nil
}

type Symptom string

const (
	SymptomFever             Symptom = "FEVER"
	SymptomCough             Symptom = "COUGH"
	SymptomHeadache          Symptom = "HEADACHE"
	SymptomSoreThroat        Symptom = "SORE_THROAT"
	SymptomBodyAche          Symptom = "BODY_ACHE"
	SymptomFatigue           Symptom = "FATIGUE"
	SymptomNausea            Symptom = "NAUSEA"
	SymptomVomiting          Symptom = "VOMITING"
	SymptomDiarrhea          Symptom = "DIARRHEA"
	SymptomChestPain         Symptom = "CHEST_PAIN"
	SymptomShortnessOfBreath Symptom = "SHORTNESS_OF_BREATH"
	SymptomDizziness         Symptom = "DIZZINESS"
	SymptomJointPain         Symptom = "JOINT_PAIN"
	SymptomRash              Symptom = "RASH"
	SymptomAllergies         Symptom = "ALLERGIES"
	SymptomCold              Symptom = "COLD"
	SymptomFlu               Symptom = "FLU"
	SymptomOther             Symptom = "OTHER"
)

var symptoms = map[Symptom]string{
	SymptomFever:             "Fever",
	SymptomCough:             "Cough",
	SymptomHeadache:          "Headache",
	SymptomSoreThroat:        "Sore Throat",
	SymptomBodyAche:          "Body Ache",
	SymptomFatigue:           "Fatigue",
	SymptomNausea:            "Nausea",
	SymptomVomiting:          "Vomiting",
	SymptomDiarrhea:          "Diarrhea",
	SymptomChestPain:         "Chest Pain",
	SymptomShortnessOfBreath: "Shortness of Breath",
	SymptomDizziness:         "Dizziness",
	SymptomJointPain:         "Joint Pain",
	SymptomRash:              "Rash",
	SymptomAllergies:         "Allergies",
	SymptomCold:              "Cold",
	SymptomFlu:               "Flu",
	SymptomOther:             "Other",
}

func ParseSymptom(v string) (Symptom, error) {
	s, err := parseEnum(v, symptoms)
	if err != nil {
		return "", fmt.Errorf("invalid symptom %q", v)
	}
	return s, nil
}

// parseEnum accepts either the canonical name ("FOLLOW_UP", any case) or the
// display name ("Follow-up"), matching how the upstream clients send values.
func parseEnum[T ~string](v string, values map[T]string) (T, error) {
	var zero T
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return zero, fmt.Errorf("empty value")
	}
	canonical := T(strings.ToUpper(trimmed))
	if _, ok := values[canonical]; ok {
		return canonical, nil
	}
	for k, display := range values {
		if strings.EqualFold(display, trimmed) {
			return k, nil
		}
	}
	return zero, fmt.Errorf("unknown value")
}
