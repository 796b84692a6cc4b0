package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-booking/internal/directory"
	"github.com/clinicdesk/clinic-booking/internal/observability/metrics"
	redisclient "github.com/clinicdesk/clinic-booking/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// ErrSlotMismatch is returned when the requested clinic/doctor/date disagree
// with the slot they point at. Treated as a bad request, not a conflict.
var ErrSlotMismatch = errors.New("slot does not belong to the requested clinic, doctor and date")

// BookingRequest is the validated booking input. Clinic, doctor and date are
// what the caller asked for; the slot row is authoritative for all three.
type BookingRequest struct {
	PatientID     int64
	SlotID        int64
	ClinicID      int
	DoctorID      string
	Date          time.Time
	Type          AppointmentType
	For           AppointmentFor
	ForName       string
	ForAge        *int
	Symptom       Symptom
	OtherSymptoms *string
}

// Service is the booking orchestrator: the only component allowed to cause a
// state change spanning slots and appointments.
type Service struct {
	slots    SlotStore
	appts    AppointmentStore
	tx       TxRunner
	gate     redisclient.SlotGate
	patients directory.PatientDirectory
	clinics  directory.ClinicDirectory
	doctors  directory.DoctorDirectory
	dailyCap int
	metrics  *metrics.BookingMetrics
	logger   *zap.Logger
}

type ServiceDeps struct {
	Slots    SlotStore
	Appts    AppointmentStore
	Tx       TxRunner
	Gate     redisclient.SlotGate
	Patients directory.PatientDirectory
	Clinics  directory.ClinicDirectory
	Doctors  directory.DoctorDirectory
	DailyCap int
	Metrics  *metrics.BookingMetrics
	Logger   *zap.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.DailyCap <= 0 {
		deps.DailyCap = DefaultDailyCap
	}
	if deps.Gate == nil {
		deps.Gate = redisclient.NopSlotGate{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		slots:    deps.Slots,
		appts:    deps.Appts,
		tx:       deps.Tx,
		gate:     deps.Gate,
		patients: deps.Patients,
		clinics:  deps.Clinics,
		doctors:  deps.Doctors,
		dailyCap: deps.DailyCap,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// BookAppointment executes a booking request end to end. All validation and
// policy reads happen before any mutation; the insert and the conditional
// slot flip run inside one transaction so a lost race leaves nothing behind.
//
// The pre-transaction checks work on a possibly stale view. That is fine:
// the conditional MarkUnavailable inside the transaction is the real
// linearization point, and the in-transaction cap recount (under the
// per-patient-date advisory lock) is the authoritative cap check.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.bookAppointment(ctx, req)
	s.metrics.ObserveBooking(bookingOutcome(err))
	return appt, err
}

func (s *Service) bookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	exists, err := s.patients.Exists(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	slot, err := s.slots.GetByID(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.ClinicID != req.ClinicID || slot.DoctorID != req.DoctorID || !sameDate(slot.Date, req.Date) {
		return nil, ErrSlotMismatch
	}

	// Fast pre-check; spares the transactional path for obviously dead
	// requests but enforces nothing.
	taken, err := s.appts.ExistsActiveBySlot(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("check slot appointment: %w", err)
	}
	if taken {
		return nil, ErrSlotAlreadyBooked
	}

	count, err := s.appts.CountActiveByPatientAndDate(ctx, req.PatientID, slot.Date)
	if err != nil {
		return nil, fmt.Errorf("count active appointments: %w", err)
	}

	switch EvaluateBooking(slot, count, s.dailyCap) {
	case RejectSlotTaken:
		return nil, ErrSlotAlreadyBooked
	case RejectDailyCapExceeded:
		return nil, ErrDailyCapExceeded
	}

	var created *Appointment

	err = s.gate.WithSlotGate(ctx, req.SlotID, func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context, st TxStores) error {
			if err := st.LockPatientDate(ctx, req.PatientID, slot.Date); err != nil {
				return err
			}

			fresh, err := st.Appointments().CountActiveByPatientAndDate(ctx, req.PatientID, slot.Date)
			if err != nil {
				return fmt.Errorf("recount active appointments: %w", err)
			}
			if fresh >= s.dailyCap {
				return ErrDailyCapExceeded
			}

			slotID := slot.ID
			appt, err := st.Appointments().Insert(ctx, &Appointment{
				PatientID:     req.PatientID,
				ClinicID:      slot.ClinicID,
				DoctorID:      slot.DoctorID,
				SlotID:        &slotID,
				Date:          slot.Date,
				Type:          req.Type,
				For:           req.For,
				ForName:       req.ForName,
				ForAge:        req.ForAge,
				Symptom:       req.Symptom,
				OtherSymptoms: req.OtherSymptoms,
			})
			if err != nil {
				return err
			}

			if err := st.Slots().MarkUnavailable(ctx, slot.ID); err != nil {
				if errors.Is(err, ErrSlotUnavailable) {
					// Lost the race since the read above. Abort so the
					// inserted appointment never becomes visible.
					return ErrSlotAlreadyBooked
				}
				return err
			}

			s.logEvent(ctx, st.Appointments(), appt.ID, EventAppointmentBooked, map[string]any{
				"slot_id":    slot.ID,
				"patient_id": req.PatientID,
				"date":       slot.Date.Format("2006-01-02"),
			})

			created = appt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.Int64("appointment_id", created.ID),
		zap.Int64("patient_id", req.PatientID),
		zap.Int64("slot_id", slot.ID),
	)
	return created, nil
}

// ListAppointmentsForPatient returns the patient's active appointments
// enriched with clinic name, doctor name and slot time. Enrichment misses
// leave the field empty; they never fail the response.
func (s *Service) ListAppointmentsForPatient(ctx context.Context, patientID int64) ([]AppointmentView, error) {
	exists, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	appts, err := s.appts.FindActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	views := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		view := AppointmentView{Appointment: a}

		if name, err := s.doctors.GetName(ctx, a.DoctorID); err == nil {
			view.DoctorName = name
		} else if !errors.Is(err, directory.ErrDoctorNotFound) {
			s.logger.Debug("doctor name lookup failed", zap.String("doctor_id", a.DoctorID), zap.Error(err))
		}

		if name, err := s.clinics.GetName(ctx, a.ClinicID); err == nil {
			view.ClinicName = name
		} else if !errors.Is(err, directory.ErrClinicNotFound) {
			s.logger.Debug("clinic name lookup failed", zap.Int("clinic_id", a.ClinicID), zap.Error(err))
		}

		if a.SlotID != nil {
			if slot, err := s.slots.GetByID(ctx, *a.SlotID); err == nil {
				view.SlotTime = slot.TimeOfDay
			}
		}

		views = append(views, view)
	}
	return views, nil
}

// AvailableDates lists future dates (today inclusive) with at least one open
// slot for the clinic+doctor, ascending.
func (s *Service) AvailableDates(ctx context.Context, clinicID int, doctorID string) ([]time.Time, error) {
	return s.slots.FindAvailableDates(ctx, clinicID, doctorID, today())
}

// AvailableSlots returns the open slots for one date grouped by shift label.
func (s *Service) AvailableSlots(ctx context.Context, clinicID int, doctorID string, date time.Time) (map[string][]SlotOption, error) {
	slots, err := s.slots.FindAvailableSlots(ctx, clinicID, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("find available slots: %w", err)
	}

	grouped := make(map[string][]SlotOption)
	for _, slot := range slots {
		grouped[slot.ShiftLabel] = append(grouped[slot.ShiftLabel], SlotOption{
			Time:   slot.TimeOfDay,
			SlotID: slot.ID,
		})
	}
	return grouped, nil
}

// CancelAppointment deactivates an appointment and re-opens its slot in one
// transaction. The inverse of the booking write pair.
func (s *Service) CancelAppointment(ctx context.Context, id int64) error {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !appt.Active {
		return ErrAppointmentInactive
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, st TxStores) error {
		if err := st.Appointments().Deactivate(ctx, id); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Someone cancelled it between the read and now.
				return ErrAppointmentInactive
			}
			return err
		}
		if appt.SlotID != nil {
			if err := st.Slots().MarkAvailable(ctx, *appt.SlotID); err != nil {
				return err
			}
		}
		s.logEvent(ctx, st.Appointments(), id, EventAppointmentCancelled, map[string]any{
			"patient_id": appt.PatientID,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveBooking(metrics.OutcomeCancelled)
	s.logger.Info("appointment cancelled",
		zap.Int64("appointment_id", id),
		zap.Int64("patient_id", appt.PatientID),
	)
	return nil
}

func (s *Service) logEvent(ctx context.Context, store AppointmentStore, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}
	if err := store.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert event log",
			zap.String("event_type", eventType),
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeBooked
	case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrSlotUnavailable):
		return metrics.OutcomeSlotConflict
	case errors.Is(err, ErrDailyCapExceeded):
		return metrics.OutcomeDailyCap
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrSlotNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func sameDate(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
