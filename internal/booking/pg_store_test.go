package booking

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// anyArgs returns n pgxmock.AnyArg matchers, for expectations that do not
// constrain individual bound values.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func slotRow(s Slot) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"slot_id", "clinic_id", "doctor_id", "slot_date",
		"slot_time", "shift_label", "is_available", "created_at",
	}).AddRow(s.ID, s.ClinicID, s.DoctorID, s.Date, s.TimeOfDay, s.ShiftLabel, s.Available, s.CreatedAt)
}

func TestPgSlotStore_GetByID(t *testing.T) {
	mock := newMockPool(t)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slot := Slot{
		ID: 100, ClinicID: 1, DoctorID: "DOC-1-1", Date: day,
		TimeOfDay: "09:00", ShiftLabel: "Morning", Available: true, CreatedAt: day,
	}

	mock.ExpectQuery("FROM slots").WithArgs(int64(100)).WillReturnRows(slotRow(slot))

	got, err := NewPgSlotStore(mock).GetByID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, &slot, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSlotStore_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("FROM slots").WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	_, err := NewPgSlotStore(mock).GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSlotStore_MarkUnavailable(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("UPDATE slots").WithArgs(int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewPgSlotStore(mock).MarkUnavailable(context.Background(), 100)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSlotStore_MarkUnavailable_LostRace(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("UPDATE slots").WithArgs(int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewPgSlotStore(mock).MarkUnavailable(context.Background(), 100)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSlotStore_MarkUnavailable_SerializationFailure(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("UPDATE slots").WithArgs(int64(100)).
		WillReturnError(&pgconn.PgError{Code: pgSerializationFailure})

	err := NewPgSlotStore(mock).MarkUnavailable(context.Background(), 100)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppointmentStore_Insert_BackstopViolation(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	slotID := int64(100)
	_, err := NewPgAppointmentStore(mock).Insert(context.Background(), &Appointment{
		PatientID: 7, ClinicID: 1, DoctorID: "DOC-1-1", SlotID: &slotID,
		Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Type: TypeConsultation, For: ForSelf, ForName: "Test Patient", Symptom: SymptomFever,
	})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppointmentStore_CountActiveByPatientAndDate(t *testing.T) {
	mock := newMockPool(t)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := NewPgAppointmentStore(mock).CountActiveByPatientAndDate(context.Background(), 7, day)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppointmentStore_Deactivate_AlreadyInactive(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("UPDATE appointments").WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewPgAppointmentStore(mock).Deactivate(context.Background(), 9)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Full booking flow against the mocked pool, exercising the exact SQL
// conversation: pre-checks, begin, advisory lock, recount, insert, conditional
// flip, event log, commit.
func TestServiceBookAppointment_PgFlow_Commit(t *testing.T) {
	mock := newMockPool(t)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slot := Slot{
		ID: 100, ClinicID: 1, DoctorID: "DOC-1-1", Date: day,
		TimeOfDay: "09:00", ShiftLabel: "Morning", Available: true, CreatedAt: day,
	}

	mock.ExpectQuery("FROM slots").WithArgs(int64(100)).WillReturnRows(slotRow(slot))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("booking:7:2026-09-01").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(11)...).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id", "created_at"}).AddRow(int64(501), day))
	mock.ExpectExec("UPDATE slots").WithArgs(int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentBooked, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(ServiceDeps{
		Slots:    NewPgSlotStore(mock),
		Appts:    NewPgAppointmentStore(mock),
		Tx:       NewPgTxRunner(mock),
		Patients: stubPatients{maxID: 1000},
		Clinics:  stubClinics{},
		Doctors:  stubDoctors{},
	})

	appt, err := svc.BookAppointment(context.Background(), bookReq(7, slot))
	require.NoError(t, err)
	assert.Equal(t, int64(501), appt.ID)
	assert.True(t, appt.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The same flow when the conditional flip matches no row: the transaction
// rolls back and the caller sees the booking conflict, never the inserted row.
func TestServiceBookAppointment_PgFlow_Rollback(t *testing.T) {
	mock := newMockPool(t)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slot := Slot{
		ID: 100, ClinicID: 1, DoctorID: "DOC-1-1", Date: day,
		TimeOfDay: "09:00", ShiftLabel: "Morning", Available: true, CreatedAt: day,
	}

	mock.ExpectQuery("FROM slots").WithArgs(int64(100)).WillReturnRows(slotRow(slot))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("booking:7:2026-09-01").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(11)...).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id", "created_at"}).AddRow(int64(501), day))
	mock.ExpectExec("UPDATE slots").WithArgs(int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	svc := NewService(ServiceDeps{
		Slots:    NewPgSlotStore(mock),
		Appts:    NewPgAppointmentStore(mock),
		Tx:       NewPgTxRunner(mock),
		Patients: stubPatients{maxID: 1000},
		Clinics:  stubClinics{},
		Doctors:  stubDoctors{},
	})

	_, err := svc.BookAppointment(context.Background(), bookReq(7, slot))
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// In-transaction recount at the cap aborts before any write happens.
func TestServiceBookAppointment_PgFlow_CapRecount(t *testing.T) {
	mock := newMockPool(t)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slot := Slot{
		ID: 100, ClinicID: 1, DoctorID: "DOC-1-1", Date: day,
		TimeOfDay: "09:00", ShiftLabel: "Morning", Available: true, CreatedAt: day,
	}

	mock.ExpectQuery("FROM slots").WithArgs(int64(100)).WillReturnRows(slotRow(slot))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("booking:7:2026-09-01").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT COUNT").WithArgs(int64(7), day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	svc := NewService(ServiceDeps{
		Slots:    NewPgSlotStore(mock),
		Appts:    NewPgAppointmentStore(mock),
		Tx:       NewPgTxRunner(mock),
		Patients: stubPatients{maxID: 1000},
		Clinics:  stubClinics{},
		Doctors:  stubDoctors{},
	})

	_, err := svc.BookAppointment(context.Background(), bookReq(7, slot))
	assert.ErrorIs(t, err, ErrDailyCapExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
