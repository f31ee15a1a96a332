package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborhealth/clinicdesk/internal/config"
	v1 "github.com/harborhealth/clinicdesk/internal/handler/v1"
	"github.com/harborhealth/clinicdesk/internal/repository"
	"github.com/harborhealth/clinicdesk/internal/service"
	"github.com/harborhealth/clinicdesk/pkg/auth"
	"github.com/harborhealth/clinicdesk/pkg/database"
	"github.com/harborhealth/clinicdesk/pkg/logger"
	"github.com/harborhealth/clinicdesk/pkg/metrics"
	"github.com/harborhealth/clinicdesk/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("loading config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("building logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		log.Fatal("initializing tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("connecting to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("migrating database", zap.Error(err))
	}

	mc := metrics.NewCollector("clinicdesk")
	go database.WatchPool(db, mc.DBConnections, 15*time.Second)

	apptRepo := repository.NewGormAppointmentRepository(db)
	patientRepo := repository.NewGormPatientRepository(db)
	providerRepo := repository.NewGormProviderRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	auditRepo := repository.NewGormAuditRepository(db)

	jwtManager := auth.NewJWTManager(cfg.JWT)
	auditSvc := service.NewAuditService(auditRepo, mc, log)
	defer auditSvc.Shutdown()

	schedulingSvc := service.NewSchedulingService(apptRepo, patientRepo, providerRepo, auditSvc, mc, cfg.Scheduling, log)
	patientSvc := service.NewPatientService(patientRepo, apptRepo, auditSvc, mc, log)
	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)

	router := v1.NewRouter(v1.Handlers{
		Auth:         v1.NewAuthHandler(authSvc),
		Appointments: v1.NewAppointmentHandler(schedulingSvc),
		Patients:     v1.NewPatientHandler(patientSvc),
		Providers:    v1.NewProviderHandler(providerRepo),
	}, jwtManager, mc, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.Server.Address()),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
