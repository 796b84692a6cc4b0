package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used by the stores. Satisfied by
// *pgxpool.Pool, pgx.Tx and the pgxmock pool, so the same store code runs
// against the pool, inside a transaction, and under test.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

type PgSlotStore struct {
	db Querier
}

func NewPgSlotStore(db Querier) *PgSlotStore {
	return &PgSlotStore{db: db}
}

const slotColumns = `slot_id, clinic_id, doctor_id, slot_date, to_char(slot_time, 'HH24:MI'), shift_label, is_available, created_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.ClinicID,
		&s.DoctorID,
		&s.Date,
		&s.TimeOfDay,
		&s.ShiftLabel,
		&s.Available,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgSlotStore) GetByID(ctx context.Context, id int64) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE slot_id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgSlotStore) FindAvailableDates(ctx context.Context, clinicID int, doctorID string, from time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT slot_date
		FROM slots
		WHERE clinic_id = $1
		  AND doctor_id = $2
		  AND is_available = TRUE
		  AND slot_date >= $3
		ORDER BY slot_date
	`, clinicID, doctorID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r *PgSlotStore) FindAvailableSlots(ctx context.Context, clinicID int, doctorID string, date time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE clinic_id = $1
		  AND doctor_id = $2
		  AND slot_date = $3
		  AND is_available = TRUE
		ORDER BY slot_time
	`, clinicID, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// MarkUnavailable is the conditional flip the whole booking guarantee hangs
// on: the WHERE clause only matches an open slot, so among concurrent callers
// exactly one sees a row change.
func (r *PgSlotStore) MarkUnavailable(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE slots
		SET is_available = FALSE
		WHERE slot_id = $1
		  AND is_available = TRUE
	`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure {
			// A write-write conflict on the slot row means the same thing as
			// zero rows updated: somebody else flipped it first.
			return ErrSlotUnavailable
		}
		return fmt.Errorf("mark slot unavailable: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (r *PgSlotStore) MarkAvailable(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE slots
		SET is_available = TRUE
		WHERE slot_id = $1
		  AND is_available = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("mark slot available: %w", err)
	}
	return nil
}

type PgAppointmentStore struct {
	db Querier
}

func NewPgAppointmentStore(db Querier) *PgAppointmentStore {
	return &PgAppointmentStore{db: db}
}

const appointmentColumns = `appointment_id, patient_id, clinic_id, doctor_id, slot_id, appointment_date,
	appointment_type, appointment_for, appointment_for_name, appointment_for_age,
	symptom, other_symptoms, active, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var apptType, apptFor, symptom string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ClinicID,
		&a.DoctorID,
		&a.SlotID,
		&a.Date,
		&apptType,
		&apptFor,
		&a.ForName,
		&a.ForAge,
		&symptom,
		&a.OtherSymptoms,
		&a.Active,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Type = AppointmentType(apptType)
	a.For = AppointmentFor(apptFor)
	a.Symptom = Symptom(symptom)
	return &a, nil
}

func (r *PgAppointmentStore) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgAppointmentStore) ExistsActiveBySlot(ctx context.Context, slotID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE slot_id = $1 AND active = TRUE
		)
	`, slotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active appointment for slot: %w", err)
	}
	return exists, nil
}

// CountActiveByPatientAndDate joins to slots because the appointment's date
// column carries the requested date while the cap is defined over the slot's
// calendar date.
func (r *PgAppointmentStore) CountActiveByPatientAndDate(ctx context.Context, patientID int64, date time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments a
		JOIN slots s ON a.slot_id = s.slot_id
		WHERE a.patient_id = $1
		  AND a.active = TRUE
		  AND s.slot_date = $2
	`, patientID, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return count, nil
}

func (r *PgAppointmentStore) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			patient_id, clinic_id, doctor_id, slot_id, appointment_date,
			appointment_type, appointment_for, appointment_for_name,
			appointment_for_age, symptom, other_symptoms, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
		RETURNING appointment_id, created_at
	`,
		appt.PatientID,
		appt.ClinicID,
		appt.DoctorID,
		appt.SlotID,
		appt.Date,
		string(appt.Type),
		string(appt.For),
		appt.ForName,
		appt.ForAge,
		string(appt.Symptom),
		appt.OtherSymptoms,
	)

	created := *appt
	created.Active = true
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Backstop index: someone else holds the active appointment for
			// this slot.
			return nil, ErrSlotAlreadyBooked
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return &created, nil
}

func (r *PgAppointmentStore) FindActiveByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND active = TRUE
		ORDER BY appointment_id
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgAppointmentStore) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET active = FALSE
		WHERE appointment_id = $1
		  AND active = TRUE
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgAppointmentStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// TxBeginner is satisfied by *pgxpool.Pool and the pgxmock pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgTxRunner struct {
	pool TxBeginner
}

func NewPgTxRunner(pool TxBeginner) *PgTxRunner {
	return &PgTxRunner{pool: pool}
}

func (r *PgTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, st TxStores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, pgTxStores{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTxStores struct {
	tx pgx.Tx
}

func (s pgTxStores) Slots() SlotStore { return NewPgSlotStore(s.tx) }

func (s pgTxStores) Appointments() AppointmentStore { return NewPgAppointmentStore(s.tx) }

// LockPatientDate takes a transaction-scoped advisory lock keyed on the
// (patient, date) pair. Held until commit or rollback, which serializes
// same-patient same-date bookings across all processes and makes the in-tx
// cap recount authoritative.
func (s pgTxStores) LockPatientDate(ctx context.Context, patientID int64, date time.Time) error {
	key := fmt.Sprintf("booking:%d:%s", patientID, date.Format("2006-01-02"))
	if _, err := s.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock patient date: %w", err)
	}
	return nil
}
