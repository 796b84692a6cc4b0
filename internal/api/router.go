package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-booking/internal/observability/metrics"
)

type RouterConfig struct {
	Service BookingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *zap.Logger
	Metrics *metrics.BookingMetrics
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/api", func(r chi.Router) {
		r.Post("/appointments", createAppointmentHandler(cfg.Service, cfg.Logger))
		r.Get("/appointments/patient/{patientId}", listAppointmentsByPatientHandler(cfg.Service, cfg.Logger))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service, cfg.Logger))
		r.Get("/slots/dates", availableDatesHandler(cfg.Service, cfg.Logger))
		r.Get("/slots", availableSlotsHandler(cfg.Service, cfg.Logger))
	})

	return r
}
