package booking

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable is the storage-level conflict signal: the
	// conditional availability flip matched no open row. The orchestrator
	// translates it to ErrSlotAlreadyBooked; it never crosses the API
	// boundary itself.
	ErrSlotUnavailable = errors.New("slot is not available")

	ErrSlotAlreadyBooked   = errors.New("the selected slot is already booked")
	ErrDailyCapExceeded    = errors.New("cancel a previous appointment to create a new one")
	ErrAppointmentInactive = errors.New("appointment is already cancelled")
)

// SlotStore owns the slot inventory and its availability flag.
type SlotStore interface {
	GetByID(ctx context.Context, id int64) (*Slot, error)

	// FindAvailableDates returns the distinct dates on or after from with at
	// least one open slot for the clinic+doctor, ascending.
	FindAvailableDates(ctx context.Context, clinicID int, doctorID string, from time.Time) ([]time.Time, error)

	// FindAvailableSlots returns the open slots for the clinic+doctor+date,
	// ordered by time of day.
	FindAvailableSlots(ctx context.Context, clinicID int, doctorID string, date time.Time) ([]Slot, error)

	// MarkUnavailable flips available true -> false as a single conditional
	// update. When no open row matched it returns ErrSlotUnavailable, which
	// is how a caller learns it lost the race. This is the linearization
	// point for the no-double-booking guarantee; it must never be
	// implemented as read-then-write.
	MarkUnavailable(ctx context.Context, id int64) error

	// MarkAvailable is the inverse transition, used by cancellation.
	MarkAvailable(ctx context.Context, id int64) error
}

// AppointmentStore owns the durable booking records.
type AppointmentStore interface {
	GetByID(ctx context.Context, id int64) (*Appointment, error)

	// ExistsActiveBySlot is a fast pre-check before the transactional path.
	// Optimization only; the conditional slot flip is what enforces the
	// invariant.
	ExistsActiveBySlot(ctx context.Context, slotID int64) (bool, error)

	// CountActiveByPatientAndDate joins appointments to slots on slot id and
	// counts active rows whose slot falls on the given date.
	CountActiveByPatientAndDate(ctx context.Context, patientID int64, date time.Time) (int, error)

	// Insert persists the appointment and returns it with the generated id.
	// A violation of the one-active-appointment-per-slot backstop surfaces
	// as ErrSlotAlreadyBooked.
	Insert(ctx context.Context, appt *Appointment) (*Appointment, error)

	// FindActiveByPatient returns the patient's active appointments ordered
	// by id for deterministic responses.
	FindActiveByPatient(ctx context.Context, patientID int64) ([]Appointment, error)

	// Deactivate flips active true -> false; ErrAppointmentNotFound when no
	// active row matched.
	Deactivate(ctx context.Context, id int64) error

	InsertEvent(ctx context.Context, ev EventLog) error
}

// TxStores exposes store implementations bound to one transaction. Writes
// issued through them become visible all together or not at all.
type TxStores interface {
	Slots() SlotStore
	Appointments() AppointmentStore

	// LockPatientDate serializes booking attempts for one (patient, date)
	// pair for the remainder of the transaction, so the in-transaction cap
	// recount is authoritative.
	LockPatientDate(ctx context.Context, patientID int64, date time.Time) error
}

// TxRunner runs fn inside a single unit of work. A non-nil error from fn
// rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, st TxStores) error) error
}
