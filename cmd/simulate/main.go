// simulate drives concurrent booking traffic against a running api-server to
// demonstrate the single-winner guarantee: when many workers race for the
// same slot, exactly one booking succeeds and the rest get 409s.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-booking/internal/db"
)

type simConfig struct {
	apiBaseURL string
	workers    int
	duration   time.Duration
	hotSlot    bool
}

type openSlot struct {
	ID       int64
	ClinicID int
	DoctorID string
	Date     string
}

type counters struct {
	total     int64
	success   int64
	conflict  int64
	badReq    int64
	errored   int64
	latencies []time.Duration
	mu        sync.Mutex
}

func (c *counters) record(latency time.Duration, status int) {
	atomic.AddInt64(&c.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&c.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&c.conflict, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&c.badReq, 1)
	default:
		atomic.AddInt64(&c.errored, 1)
	}
	c.mu.Lock()
	c.latencies = append(c.latencies, latency)
	c.mu.Unlock()
}

func (c *counters) percentile(p float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(c.latencies))
	copy(sorted, c.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	cfg := simConfig{}
	flag.StringVar(&cfg.apiBaseURL, "api", "http://127.0.0.1:8080", "api-server base URL")
	flag.IntVar(&cfg.workers, "workers", 50, "concurrent workers")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Second, "how long to run")
	flag.BoolVar(&cfg.hotSlot, "hot-slot", false, "all workers target a single slot")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required to pick patients and slots")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, dsn)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}

	patients, slots, err := loadPool(context.Background(), pool)
	pool.Close()
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	if len(patients) == 0 || len(slots) == 0 {
		log.Fatal("no patients or open slots; run cmd/seed first")
	}
	log.Printf("loaded %d patients and %d open slots", len(patients), len(slots))

	if cfg.hotSlot {
		slots = slots[:1]
		log.Printf("hot-slot mode: all workers racing for slot %d", slots[0].ID)
	}

	var stats counters
	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.duration)

	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				patient := patients[rng.Intn(len(patients))]
				slot := slots[rng.Intn(len(slots))]
				bookOnce(client, cfg.apiBaseURL, patient, slot, &stats)
				if cfg.hotSlot && atomic.LoadInt64(&stats.success) > 0 {
					return
				}
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	fmt.Println("---- simulation summary ----")
	fmt.Printf("total=%d success=%d conflict=%d bad_request=%d error=%d\n",
		stats.total, stats.success, stats.conflict, stats.badReq, stats.errored)
	fmt.Printf("latency p50=%s p95=%s\n", stats.percentile(0.50), stats.percentile(0.95))
	if cfg.hotSlot && stats.success != 1 {
		fmt.Printf("EXPECTED exactly 1 success for the hot slot, got %d\n", stats.success)
		os.Exit(1)
	}
}

func loadPool(ctx context.Context, pool *pgxpool.Pool) ([]int64, []openSlot, error) {
	rows, err := pool.Query(ctx, `SELECT patient_id FROM patients LIMIT 1000`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var patients []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, nil, err
		}
		patients = append(patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	slotRows, err := pool.Query(ctx, `
		SELECT slot_id, clinic_id, doctor_id, to_char(slot_date, 'YYYY-MM-DD')
		FROM slots
		WHERE is_available = TRUE
		  AND slot_date >= CURRENT_DATE
		ORDER BY slot_date, slot_time
		LIMIT 5000
	`)
	if err != nil {
		return nil, nil, err
	}
	defer slotRows.Close()

	var slots []openSlot
	for slotRows.Next() {
		var s openSlot
		if err := slotRows.Scan(&s.ID, &s.ClinicID, &s.DoctorID, &s.Date); err != nil {
			return nil, nil, err
		}
		slots = append(slots, s)
	}
	return patients, slots, slotRows.Err()
}

func bookOnce(client *http.Client, baseURL string, patientID int64, slot openSlot, stats *counters) {
	body := map[string]any{
		"patientId":          patientID,
		"appointmentType":    "CONSULTATION",
		"appointmentFor":     "SELF",
		"appointmentForName": "Load Tester",
		"symptom":            "FEVER",
		"appointmentDate":    slot.Date,
		"clinicId":           fmt.Sprintf("%d", slot.ClinicID),
		"doctorId":           slot.DoctorID,
		"slotId":             fmt.Sprintf("%d", slot.ID),
	}
	payload, _ := json.Marshal(body)

	start := time.Now()
	resp, err := client.Post(baseURL+"/v1/api/appointments", "application/json", bytes.NewReader(payload))
	latency := time.Since(start)
	if err != nil {
		stats.record(latency, 0)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	stats.record(latency, resp.StatusCode)
}
