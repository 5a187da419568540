package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Casablanca", cfg.City)
	assert.Equal(t, 30, cfg.BackfillDays)
	assert.Equal(t, 100, cfg.DailyCap)
	assert.Equal(t, time.Second, cfg.CallDelay)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "en", cfg.Lang)
	assert.Zero(t, cfg.ScheduleInterval)
	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5433", cfg.Database.Port)
	assert.Equal(t, "weather_db", cfg.Database.Name)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "weather_errors.log", cfg.LogFile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("CITY", "Rabat")
	t.Setenv("BACKFILL_DAYS", "7")
	t.Setenv("MAX_CALLS_PER_DAY", "2")
	t.Setenv("DELAY_BETWEEN_CALLS", "0s")
	t.Setenv("SCHEDULE_INTERVAL", "6h")
	t.Setenv("STORAGE", "memory")
	t.Setenv("LOG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Rabat", cfg.City)
	assert.Equal(t, 7, cfg.BackfillDays)
	assert.Equal(t, 2, cfg.DailyCap)
	assert.Zero(t, cfg.CallDelay)
	assert.Equal(t, 6*time.Hour, cfg.ScheduleInterval)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Empty(t, cfg.LogFile)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLogFileIsAvailableWithoutAPIKey(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("LOG_FILE", "")
	require.NoError(t, os.Unsetenv("LOG_FILE"))

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, "weather_errors.log", LogFile())

	t.Setenv("LOG_FILE", "/tmp/ingestion.log")
	assert.Equal(t, "/tmp/ingestion.log", LogFile())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"BACKFILL_DAYS":       "thirty",
		"MAX_CALLS_PER_DAY":   "0",
		"DELAY_BETWEEN_CALLS": "soon",
		"HTTP_TIMEOUT":        "-1s",
		"STORAGE":             "mysql",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("OPENWEATHER_API_KEY", "secret")
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestFieldsRedactSecrets(t *testing.T) {
	cfg := &AppConfig{OpenWeatherAPIKey: "secret", Database: Database{Password: "hunter2"}}

	for _, f := range cfg.Fields() {
		assert.NotEqual(t, "secret", f.String)
		assert.NotEqual(t, "hunter2", f.String)
	}
}
