package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/pkg/metrics"
)

// Статусы health check
const (
	statusHealthy   = "healthy"
	statusWarning   = "warning"
	statusUnhealthy = "unhealthy"
)

// Пороги ресурсов процесса
const (
	memoryWarningBytes  = 500 << 20
	memoryCriticalBytes = 1 << 30
	goroutinesWarning   = 500
	goroutinesCritical  = 5000
)

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks"`
	Booking   *BookingSnapshot  `json:"booking,omitempty"`
}

// BookingSnapshot состояние записи на сегодня
type BookingSnapshot struct {
	Today        calendar.CalendarDate `json:"hoje"`
	OfferedToday int                   `json:"horarios_hoje"`
	QueueSize    int                   `json:"fila"`
}

// HealthStore часть хранилища, нужная health check
type HealthStore interface {
	Ping(ctx context.Context) error
	ListQueue(ctx context.Context) ([]*models.QueueEntry, error)
}

// HealthChecker проверяет хранилище, расписание и ресурсы процесса
type HealthChecker struct {
	store     HealthStore
	schedule  *Schedule
	clock     calendar.Clock
	startTime time.Time
	version   string
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(store HealthStore, schedule *Schedule, clock calendar.Clock, version string) *HealthChecker {
	return &HealthChecker{
		store:     store,
		schedule:  schedule,
		clock:     clock,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthHandler обрабатывает запросы health check. Недоступное
// хранилище дает 503, превышение порогов ресурсов только warning.
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, 4)
	overall := statusHealthy

	if err := h.store.Ping(ctx); err != nil {
		checks["database"] = statusUnhealthy + ": " + err.Error()
		overall = statusUnhealthy
	} else {
		checks["database"] = statusHealthy
	}

	snapshot, err := h.booking(ctx)
	if err != nil {
		checks["queue"] = statusUnhealthy + ": " + err.Error()
		overall = statusUnhealthy
	} else {
		checks["queue"] = statusHealthy
	}

	checks["memory"] = checkMemory()
	checks["goroutines"] = checkGoroutines()
	if overall == statusHealthy && (checks["memory"] != statusHealthy || checks["goroutines"] != statusHealthy) {
		overall = statusWarning
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: h.clock.Now().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
		Booking:   snapshot,
	}

	status := http.StatusOK
	if overall == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// booking собирает сводку дня и обновляет gauge очереди
func (h *HealthChecker) booking(ctx context.Context) (*BookingSnapshot, error) {
	queue, err := h.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetQueueSize(len(queue))

	today := calendar.Today(h.clock)
	return &BookingSnapshot{
		Today:        today,
		OfferedToday: len(h.schedule.OfferedSlots(today)),
		QueueSize:    len(queue),
	}, nil
}

// checkMemory проверяет использование памяти
func checkMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.MemoryUsage.Set(float64(m.Alloc))

	switch {
	case m.Alloc > memoryCriticalBytes:
		return fmt.Sprintf("critical: %d MB allocated", m.Alloc>>20)
	case m.Alloc > memoryWarningBytes:
		return fmt.Sprintf("warning: %d MB allocated", m.Alloc>>20)
	default:
		return statusHealthy
	}
}

// checkGoroutines проверяет количество горутин
func checkGoroutines() string {
	count := runtime.NumGoroutine()
	metrics.GoroutinesCount.Set(float64(count))

	switch {
	case count > goroutinesCritical:
		return fmt.Sprintf("critical: %d goroutines", count)
	case count > goroutinesWarning:
		return fmt.Sprintf("warning: %d goroutines", count)
	default:
		return statusHealthy
	}
}
