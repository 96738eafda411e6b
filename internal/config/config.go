package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Schedule ScheduleConfig `json:"schedule"`
	Client   ClientConfig   `json:"client"`
	Telegram TelegramConfig `json:"telegram"`
	LogLevel string         `json:"log_level"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port              string        `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	RequestsPerMinute int           `json:"requests_per_minute"`
	AllowedOrigins    []string      `json:"allowed_origins"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path        string        `json:"path"`
	ConnTimeout time.Duration `json:"conn_timeout"`
}

// ScheduleConfig содержит расписание барбершопа
type ScheduleConfig struct {
	Slots               []string `json:"slots"`
	ClosedWeekdays      []string `json:"closed_weekdays"`
	BookingWindowMonths int      `json:"booking_window_months"`
	CleanupAfterDays    int      `json:"cleanup_after_days"`
	CleanupCron         string   `json:"cleanup_cron"`
}

// ClientConfig содержит настройки HTTP клиента виджета
type ClientConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	Enabled      bool   `json:"enabled"`
	Token        string `json:"token"`
	WebhookURL   string `json:"webhook_url"`
	SecretToken  string `json:"secret_token"`
	ReminderMins int    `json:"reminder_mins"`
}

// DefaultSlots рабочие часы по умолчанию, с перерывом на обед
var DefaultSlots = []string{
	"09:00", "10:00", "11:00", "12:00",
	"14:00", "15:00", "16:00", "17:00", "18:00",
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load загружает конфигурацию из .env и переменных окружения.
// Отсутствие файла .env не считается ошибкой.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	port := getEnv("PORT", "8080")

	cfg := &Config{
		Server: ServerConfig{
			Port:              port,
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Path:        getEnv("DB_FILE", "barbershop.db"),
			ConnTimeout: getEnvAsDuration("DB_CONN_TIMEOUT", 5*time.Second),
		},
		Schedule: ScheduleConfig{
			Slots:               getEnvAsList("SCHEDULE_SLOTS", DefaultSlots),
			ClosedWeekdays:      getEnvAsList("CLOSED_WEEKDAYS", nil),
			BookingWindowMonths: getEnvAsInt("BOOKING_WINDOW_MONTHS", 1),
			CleanupAfterDays:    getEnvAsInt("CLEANUP_AFTER_DAYS", 30),
			CleanupCron:         getEnv("CLEANUP_CRON", "0 3 * * *"),
		},
		Client: ClientConfig{
			BaseURL: getEnv("BOOKING_API_URL", "http://localhost:"+port),
			Timeout: getEnvAsDuration("BOOKING_API_TIMEOUT", 10*time.Second),
		},
		Telegram: TelegramConfig{
			Enabled:      getEnvAsBool("TELEGRAM_ENABLED", false),
			Token:        os.Getenv("TELEGRAM_TOKEN"),
			WebhookURL:   os.Getenv("WEBHOOK_URL"),
			SecretToken:  os.Getenv("TELEGRAM_SECRET_TOKEN"),
			ReminderMins: getEnvAsInt("REMINDER_MINS", 60),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func invalid(reason string) error {
	return errors.ErrConfigurationInvalid.WithMessage(reason)
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return invalid("PORT is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return invalid("server timeouts must be positive")
	}
	if c.Server.RequestsPerMinute <= 0 {
		return invalid("RATE_LIMIT_PER_MINUTE must be positive")
	}

	if c.Database.Path == "" {
		return invalid("DB_FILE is required")
	}

	if len(c.Schedule.Slots) == 0 {
		return invalid("SCHEDULE_SLOTS must list at least one slot")
	}
	for _, s := range c.Schedule.Slots {
		if _, err := calendar.ParseTimeSlot(s); err != nil {
			return invalid(fmt.Sprintf("invalid slot %q in SCHEDULE_SLOTS (expected HH:MM)", s))
		}
	}
	if _, err := c.Schedule.ClosedDays(); err != nil {
		return err
	}
	if c.Schedule.BookingWindowMonths <= 0 {
		return invalid("BOOKING_WINDOW_MONTHS must be positive")
	}
	if c.Schedule.CleanupAfterDays < 0 {
		return invalid("CLEANUP_AFTER_DAYS must be non-negative")
	}

	if c.Client.Timeout <= 0 {
		return invalid("BOOKING_API_TIMEOUT must be positive")
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			return invalid("TELEGRAM_TOKEN is required when TELEGRAM_ENABLED=true")
		}
		if c.Telegram.WebhookURL == "" {
			return invalid("WEBHOOK_URL is required when TELEGRAM_ENABLED=true")
		}
		if !strings.HasPrefix(c.Telegram.WebhookURL, "https://") {
			return invalid("WEBHOOK_URL must use https")
		}
	}
	if c.Telegram.ReminderMins < 0 {
		return invalid("REMINDER_MINS must be non-negative")
	}

	return nil
}

// OfferedSlots возвращает слоты расписания в канонической форме
func (s ScheduleConfig) OfferedSlots() []calendar.TimeSlot {
	slots := make([]calendar.TimeSlot, 0, len(s.Slots))
	for _, v := range s.Slots {
		slots = append(slots, calendar.TimeSlot(v))
	}
	return slots
}

// ClosedDays разбирает названия выходных дней
func (s ScheduleConfig) ClosedDays() (map[time.Weekday]bool, error) {
	closed := make(map[time.Weekday]bool, len(s.ClosedWeekdays))
	for _, name := range s.ClosedWeekdays {
		day, ok := weekdays[strings.ToLower(name)]
		if !ok {
			return nil, invalid(fmt.Sprintf("unknown weekday %q in CLOSED_WEEKDAYS", name))
		}
		closed[day] = true
	}
	return closed, nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvAsBool получает переменную окружения как bool
func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvAsList получает список через запятую. Пустые элементы
// отбрасываются; "-" означает пустой список.
func getEnvAsList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return append([]string(nil), fallback...)
	}
	if strings.TrimSpace(v) == "-" {
		return []string{}
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
