package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/config"
	"github.com/region23/barbershop/internal/storage/sqlite"
	"github.com/region23/barbershop/pkg/logger"
)

// SetupTestDB создает in-memory SQLite базу данных для тестов
func SetupTestDB(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	storage, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

// SetupTestLogger создает тестовый логгер, который ничего не пишет
func SetupTestLogger() *logger.Logger {
	return logger.Nop()
}

// TestContext создает контекст для тестов
func TestContext() context.Context {
	return context.Background()
}

// ClockAt возвращает часы, остановленные на указанном локальном моменте
func ClockAt(year int, month time.Month, day, hour, minute int) calendar.FixedClock {
	return calendar.FixedClock(time.Date(year, month, day, hour, minute, 0, 0, time.Local))
}

// TestConfig возвращает валидную конфигурацию без обращения к окружению
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:              "0",
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
			IdleTimeout:       5 * time.Second,
			RequestsPerMinute: 1000,
			AllowedOrigins:    []string{"*"},
		},
		Database: config.DatabaseConfig{
			Path:        ":memory:",
			ConnTimeout: time.Second,
		},
		Schedule: config.ScheduleConfig{
			Slots:               append([]string(nil), config.DefaultSlots...),
			ClosedWeekdays:      []string{"sunday"},
			BookingWindowMonths: 1,
			CleanupAfterDays:    30,
			CleanupCron:         "0 3 * * *",
		},
		Client: config.ClientConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 5 * time.Second,
		},
		Telegram: config.TelegramConfig{
			ReminderMins: 60,
		},
		LogLevel: "debug",
	}
}
