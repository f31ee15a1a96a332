package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harborhealth/clinicdesk/internal/config"
	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
	"github.com/harborhealth/clinicdesk/internal/domain/patient"
	"github.com/harborhealth/clinicdesk/internal/domain/provider"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// WatchPool publishes the pool's open connection count on the gauge until the
// process exits. Run in its own goroutine.
func WatchPool(db *gorm.DB, gauge prometheus.Gauge, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		gauge.Set(float64(sqlDB.Stats().OpenConnections))
	}
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "auth", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&patient.Patient{},
		&provider.Provider{},
		&appointment.Appointment{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createConstraints(db); err != nil {
		return fmt.Errorf("creating constraints: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// createConstraints installs the scheduling guards that AutoMigrate cannot
// express: the time-range sanity check and the gist exclusion constraint
// that backstops provider double-booking under concurrent writes.
func createConstraints(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("installing btree_gist extension: %w", err)
	}

	statements := []string{
		`ALTER TABLE clinical.appointments
			ADD CONSTRAINT chk_appointments_time_range CHECK (end_at > start_at)`,
		`ALTER TABLE clinical.appointments
			ADD CONSTRAINT excl_provider_overlap
			EXCLUDE USING gist (
				provider_id WITH =,
				tsrange(start_at, end_at) WITH &&
			)
			WHERE (provider_id IS NOT NULL AND status <> 'canceled' AND deleted_at IS NULL)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_provider_schedule
			ON clinical.appointments (provider_id, start_at, end_at)
			WHERE deleted_at IS NULL AND status <> 'canceled'`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_patient_schedule
			ON clinical.appointments (patient_id, start_at, end_at)
			WHERE deleted_at IS NULL AND status <> 'canceled'`,
	}

	for _, stmt := range statements {
		// ALTER TABLE ADD CONSTRAINT is not idempotent; only a duplicate
		// object on a re-run is harmless. Anything else would leave the
		// schema without its race backstop and must abort startup.
		if err := db.Exec(stmt).Error; err != nil && !isDuplicateObject(err) {
			return fmt.Errorf("installing scheduling constraint: %w", err)
		}
	}

	return nil
}

// isDuplicateObject reports whether err is Postgres telling us the
// constraint or index already exists (SQLSTATE class 42 duplicates).
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42710", "42P07": // duplicate_object, duplicate_table
		return true
	}
	return false
}
