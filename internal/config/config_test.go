package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/barbershop/pkg/errors"
)

var configKeys = []string{
	"PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
	"RATE_LIMIT_PER_MINUTE", "ALLOWED_ORIGINS", "DB_FILE", "DB_CONN_TIMEOUT",
	"SCHEDULE_SLOTS", "CLOSED_WEEKDAYS", "BOOKING_WINDOW_MONTHS", "CLEANUP_AFTER_DAYS",
	"CLEANUP_CRON", "BOOKING_API_URL", "BOOKING_API_TIMEOUT", "TELEGRAM_ENABLED",
	"TELEGRAM_TOKEN", "WEBHOOK_URL", "TELEGRAM_SECRET_TOKEN", "REMINDER_MINS", "LOG_LEVEL",
}

// clearEnv очищает переменные конфигурации на время теста
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// .env рабочего каталога не должен влиять на тест
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RequestsPerMinute)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "barbershop.db", cfg.Database.Path)
	assert.Equal(t, DefaultSlots, cfg.Schedule.Slots)
	assert.Empty(t, cfg.Schedule.ClosedWeekdays)
	assert.Equal(t, 1, cfg.Schedule.BookingWindowMonths)
	assert.Equal(t, "0 3 * * *", cfg.Schedule.CleanupCron)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("SCHEDULE_SLOTS", "08:00, 08:30 ,09:00")
	t.Setenv("CLOSED_WEEKDAYS", "Sunday,monday")
	t.Setenv("TELEGRAM_ENABLED", "true")
	t.Setenv("TELEGRAM_TOKEN", "123456:ABC")
	t.Setenv("WEBHOOK_URL", "https://example.com/webhook")
	t.Setenv("REMINDER_MINS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"08:00", "08:30", "09:00"}, cfg.Schedule.Slots)
	assert.Equal(t, "http://localhost:9000", cfg.Client.BaseURL)
	assert.Equal(t, 30, cfg.Telegram.ReminderMins)

	closed, err := cfg.Schedule.ClosedDays()
	require.NoError(t, err)
	assert.Equal(t, map[time.Weekday]bool{time.Sunday: true, time.Monday: true}, closed)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nDB_FILE=from-file.db\nCLOSED_WEEKDAYS=-\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "from-file.db", cfg.Database.Path)
	assert.Empty(t, cfg.Schedule.ClosedWeekdays)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad slot", map[string]string{"SCHEDULE_SLOTS": "09:00,9h"}},
		{"unknown weekday", map[string]string{"CLOSED_WEEKDAYS": "domingo"}},
		{"zero window", map[string]string{"BOOKING_WINDOW_MONTHS": "0"}},
		{"telegram without token", map[string]string{"TELEGRAM_ENABLED": "true", "WEBHOOK_URL": "https://example.com"}},
		{"telegram without webhook", map[string]string{"TELEGRAM_ENABLED": "true", "TELEGRAM_TOKEN": "x"}},
		{"insecure webhook", map[string]string{"TELEGRAM_ENABLED": "true", "TELEGRAM_TOKEN": "x", "WEBHOOK_URL": "http://example.com"}},
		{"negative reminder", map[string]string{"REMINDER_MINS": "-5"}},
		{"zero rate limit", map[string]string{"RATE_LIMIT_PER_MINUTE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfigurationInvalid), "got %v", err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	// Явно указанный, но отсутствующий файл тоже допустим
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestOfferedSlots(t *testing.T) {
	s := ScheduleConfig{Slots: []string{"09:00", "10:00"}}
	got := s.OfferedSlots()
	require.Len(t, got, 2)
	assert.Equal(t, "10:00", string(got[1]))
}
