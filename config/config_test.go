package config

import (
	"testing"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "Asia/Karachi", cfg.App.Location.String())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.UsesPostgres())
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Finance.DefaultTeacherShare.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, 3, cfg.Finance.SettlementRetryAttempts)
	assert.Equal(t, 10, cfg.EventBus.Workers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("HTTP_READ_TIMEOUT", "5s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("GATEWAY_KEY_HASHES", " $2a$10$abc , ,$2a$10$def")
	t.Setenv("DEFAULT_TEACHER_SHARE", "62.5")
	t.Setenv("SETTLEMENT_RETRY_ATTEMPTS", "5")
	t.Setenv("EVENT_BUS_WORKERS", "4")
	t.Setenv("ACADEMY_TIMEZONE", "UTC")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "5s", cfg.HTTP.ReadTimeout.String())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"$2a$10$abc", "$2a$10$def"}, cfg.Auth.GatewayKeyHashes)
	assert.Equal(t, "62.5", cfg.Finance.DefaultTeacherShare.String())
	assert.Equal(t, 5, cfg.Finance.SettlementRetryAttempts)
	assert.Equal(t, 4, cfg.EventBus.Workers)
}

func TestDatabaseURLFromComponents(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "finance")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://finance:secret@db:5432/academy_finance?sslmode=disable", cfg.Database.URL)
	assert.True(t, cfg.UsesPostgres())
}

func TestDatabaseURLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u@h/x")
	t.Setenv("POSTGRES_HOST", "ignored")
	t.Setenv("POSTGRES_USER", "ignored")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/x", cfg.Database.URL)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GATEWAY_KEY_HASHES", "")
	t.Setenv("HTTP_PORT", "70000")
	t.Setenv("DEFAULT_TEACHER_SHARE", "120")
	t.Setenv("SETTLEMENT_RETRY_ATTEMPTS", "0")
	t.Setenv("EVENT_BUS_WORKERS", "0")
	t.Setenv("ACADEMY_TIMEZONE", "Mars/Olympus")

	_, err := FromEnv()
	require.Error(t, err)

	for _, want := range []string{
		"ACADEMY_TIMEZONE",
		"DATABASE_URL is required in production",
		"GATEWAY_KEY_HASHES is required in production",
		"HTTP_PORT",
		"DEFAULT_TEACHER_SHARE",
		"SETTLEMENT_RETRY_ATTEMPTS",
		"EVENT_BUS_WORKERS",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "qa")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `APP_ENV "qa"`)
}

func TestMalformedNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("DEFAULT_TEACHER_SHARE", "seventy")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.True(t, cfg.Finance.DefaultTeacherShare.Equal(decimal.NewFromInt(70)))
}
