package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "clinicdesk-api", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.True(t, cfg.Scheduling.RevalidateOnUpdate)
	assert.Equal(t, 500, cfg.Scheduling.MaxListLimit)
	assert.False(t, cfg.Scheduling.AllowPastBooking)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCHED_REVALIDATE_ON_UPDATE", "false")
	t.Setenv("SCHED_MAX_LIST_LIMIT", "50")
	t.Setenv("DB_CONN_MAX_LIFETIME", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Scheduling.RevalidateOnUpdate)
	assert.Equal(t, 50, cfg.Scheduling.MaxListLimit)
	assert.Equal(t, 10*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoad_ProductionGuards(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_SSLMODE", "disable")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 32 characters")
	assert.Contains(t, err.Error(), "DB_PASSWORD is required")
	assert.Contains(t, err.Error(), "DB_SSLMODE=disable is not allowed")
}

func TestLoad_RejectsNonPositiveListLimit(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SCHED_MAX_LIST_LIMIT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHED_MAX_LIST_LIMIT must be positive")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.internal", Port: 5433, Name: "clinic",
		User: "app", Password: "pw", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal user=app password=pw dbname=clinic port=5433 sslmode=require TimeZone=UTC",
		d.DSN())
}
