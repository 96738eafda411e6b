package server

import (
	"net/http"
	"time"

	"github.com/region23/barbershop/internal/middleware"
	"github.com/region23/barbershop/pkg/logger"
)

// SecurityLogger логирует события безопасности и аудита
type SecurityLogger struct {
	logger *logger.Logger
}

// NewSecurityLogger создает новый логгер безопасности
func NewSecurityLogger(log *logger.Logger) *SecurityLogger {
	return &SecurityLogger{logger: log}
}

func requestFields(r *http.Request) []logger.Field {
	return []logger.Field{
		logger.String("ip", middleware.GetRealIP(r)),
		logger.String("user_agent", r.UserAgent()),
		logger.String("path", r.URL.Path),
		logger.String("method", r.Method),
		logger.Int64("timestamp", time.Now().UTC().Unix()),
	}
}

// LogFailedAuth логирует неудачную проверку webhook
func (sl *SecurityLogger) LogFailedAuth(r *http.Request, reason string) {
	fields := append([]logger.Field{logger.String("reason", reason)}, requestFields(r)...)
	sl.logger.Warn("Authentication failed", fields...)
}

// LogValidationError логирует отклоненный ввод
func (sl *SecurityLogger) LogValidationError(r *http.Request, fieldName string, value interface{}, reason string) {
	fields := append([]logger.Field{
		logger.String("field", fieldName),
		logger.Any("value", value),
		logger.String("reason", reason),
	}, requestFields(r)...)
	sl.logger.Warn("Validation error", fields...)
}

// LogBlockedRequest логирует заблокированные запросы
func (sl *SecurityLogger) LogBlockedRequest(r *http.Request, reason string) {
	fields := append([]logger.Field{
		logger.String("reason", reason),
		logger.Int64("content_length", r.ContentLength),
	}, requestFields(r)...)
	sl.logger.Warn("Request blocked", fields...)
}

// LogAdminAction логирует изменяющее действие в панели администратора
func (sl *SecurityLogger) LogAdminAction(r *http.Request, status int) {
	fields := append([]logger.Field{logger.Int("status_code", status)}, requestFields(r)...)
	sl.logger.Info("Admin action", fields...)
}

// LogSystemEvent логирует системные события
func (sl *SecurityLogger) LogSystemEvent(event string, level string, details map[string]interface{}) {
	fields := []logger.Field{
		logger.String("event", event),
		logger.Int64("timestamp", time.Now().UTC().Unix()),
	}
	for key, value := range details {
		fields = append(fields, logger.Any(key, value))
	}

	switch level {
	case "error":
		sl.logger.Error("System event", fields...)
	case "warn":
		sl.logger.Warn("System event", fields...)
	default:
		sl.logger.Info("System event", fields...)
	}
}
