package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-booking/internal/api"
	"github.com/clinicdesk/clinic-booking/internal/booking"
	"github.com/clinicdesk/clinic-booking/internal/config"
	"github.com/clinicdesk/clinic-booking/internal/db"
	"github.com/clinicdesk/clinic-booking/internal/directory"
	"github.com/clinicdesk/clinic-booking/internal/logging"
	"github.com/clinicdesk/clinic-booking/internal/observability/metrics"
	redisclient "github.com/clinicdesk/clinic-booking/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Int("daily_cap", cfg.DailyCap),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	bookingMetrics := metrics.NewBookingMetrics(nil)

	clinics := directory.NewCachedClinicDirectory(
		directory.NewPgClinicDirectory(pgPool), rdb, cfg.DirectoryCacheTTL, logger)
	doctors := directory.NewCachedDoctorDirectory(
		directory.NewPgDoctorDirectory(pgPool), rdb, cfg.DirectoryCacheTTL, logger)

	svc := booking.NewService(booking.ServiceDeps{
		Slots:    booking.NewPgSlotStore(pgPool),
		Appts:    booking.NewPgAppointmentStore(pgPool),
		Tx:       booking.NewPgTxRunner(pgPool),
		Gate:     redisclient.NewRedisSlotGate(rdb, cfg.LockTTL, logger),
		Patients: directory.NewPgPatientDirectory(pgPool),
		Clinics:  clinics,
		Doctors:  doctors,
		DailyCap: cfg.DailyCap,
		Metrics:  bookingMetrics,
		Logger:   logger,
	})

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Metrics: bookingMetrics,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
