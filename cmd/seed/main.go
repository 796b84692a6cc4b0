package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-booking/internal/db"
)

const (
	clinicCount      = 5
	doctorsPerClinic = 4
	patientCount     = 500
	scheduleDays     = 14
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedClinicsAndDoctors(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed clinics/doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, patientCount); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

type doctorRef struct {
	ID       string
	ClinicID int
}

func seedClinicsAndDoctors(ctx context.Context, pool *pgxpool.Pool) ([]doctorRef, error) {
	log.Printf("seeding %d clinics with %d doctors each", clinicCount, doctorsPerClinic)

	specialties := []string{
		"General Practice",
		"Pediatrics",
		"Dermatology",
		"Cardiology",
		"Orthopedics",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var doctors []doctorRef
	for i := 0; i < clinicCount; i++ {
		var clinicID int
		err := tx.QueryRow(ctx, `
			INSERT INTO clinics (clinic_name, clinic_address)
			VALUES ($1, $2)
			RETURNING clinic_id
		`, gofakeit.Company()+" Clinic", gofakeit.Address().Address).Scan(&clinicID)
		if err != nil {
			return nil, err
		}

		for j := 0; j < doctorsPerClinic; j++ {
			id := fmt.Sprintf("DOC-%d-%d", clinicID, j+1)
			spec := specialties[gofakeit.Number(0, len(specialties)-1)]
			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (doctor_id, doctor_name, clinic_id, specialty)
				VALUES ($1, $2, $3, $4)
			`, id, "Dr. "+gofakeit.Name(), clinicID, spec)
			if err != nil {
				return nil, err
			}
			doctors = append(doctors, doctorRef{ID: id, ClinicID: clinicID})
		}
	}

	return doctors, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		phone := gofakeit.Phone()
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (name, phone)
			VALUES ($1, $2)
		`, gofakeit.Name(), phone)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// seedSlots builds the next scheduleDays of half-hour slots per doctor,
// split into a Morning and an Evening shift.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctors []doctorRef) error {
	shifts := map[string][]string{
		"Morning": {"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		"Evening": {"17:00", "17:30", "18:00", "18:30", "19:00", "19:30"},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	start := time.Now().UTC()
	for _, doc := range doctors {
		for day := 0; day < scheduleDays; day++ {
			date := start.AddDate(0, 0, day).Format("2006-01-02")
			for shift, times := range shifts {
				for _, t := range times {
					_, err := tx.Exec(ctx, `
						INSERT INTO slots (clinic_id, doctor_id, slot_date, slot_time, shift_label)
						VALUES ($1, $2, $3::date, $4::time, $5)
						ON CONFLICT DO NOTHING
					`, doc.ClinicID, doc.ID, date, t, shift)
					if err != nil {
						return err
					}
					total++
				}
			}
		}
	}

	log.Printf("seeded %d slots for %d doctors", total, len(doctors))
	return tx.Commit(ctx)
}
