// Package directory exposes the read-only reference-data capabilities the
// booking core consumes: patient existence, clinic names, doctor names. The
// core tolerates a time-bounded stale view of clinic/doctor names; none of
// the booking invariants depend on them.
package directory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrClinicNotFound  = errors.New("clinic not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
)

type Patient struct {
	ID        int64
	Name      string
	Phone     *string
	CreatedAt time.Time
}

type PatientDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*Patient, error)
}

type ClinicDirectory interface {
	// GetName returns ErrClinicNotFound when the clinic is unknown.
	GetName(ctx context.Context, id int) (string, error)
}

type DoctorDirectory interface {
	// GetName returns ErrDoctorNotFound when the doctor is unknown.
	GetName(ctx context.Context, id string) (string, error)
}
