package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier mirrors the pgx subset used here; satisfied by *pgxpool.Pool,
// pgx.Tx and the pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgPatientDirectory struct {
	db Querier
}

func NewPgPatientDirectory(db Querier) *PgPatientDirectory {
	return &PgPatientDirectory{db: db}
}

func (d *PgPatientDirectory) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := d.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient exists: %w", err)
	}
	return exists, nil
}

func (d *PgPatientDirectory) Get(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := d.db.QueryRow(ctx, `
		SELECT patient_id, name, phone, created_at
		FROM patients
		WHERE patient_id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

type PgClinicDirectory struct {
	db Querier
}

func NewPgClinicDirectory(db Querier) *PgClinicDirectory {
	return &PgClinicDirectory{db: db}
}

func (d *PgClinicDirectory) GetName(ctx context.Context, id int) (string, error) {
	var name string
	err := d.db.QueryRow(ctx, `
		SELECT clinic_name FROM clinics WHERE clinic_id = $1
	`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrClinicNotFound
		}
		return "", err
	}
	return name, nil
}

type PgDoctorDirectory struct {
	db Querier
}

func NewPgDoctorDirectory(db Querier) *PgDoctorDirectory {
	return &PgDoctorDirectory{db: db}
}

func (d *PgDoctorDirectory) GetName(ctx context.Context, id string) (string, error) {
	var name string
	err := d.db.QueryRow(ctx, `
		SELECT doctor_name FROM doctors WHERE doctor_id = $1
	`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrDoctorNotFound
		}
		return "", err
	}
	return name, nil
}
