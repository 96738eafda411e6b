package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервиса записи
var (
	// Клиентское ядро
	AvailabilityFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_availability_fetches_total",
			Help: "Запросы доступности по результату",
		},
		[]string{"result"}, // ok, closed, error, stale
	)

	SlotDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_slot_decisions_total",
			Help: "Классификация слотов по статусу и причине",
		},
		[]string{"status", "reason"},
	)

	ReservationSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_reservation_submissions_total",
			Help: "Отправки бронирования по исходу",
		},
		[]string{"outcome"}, // success, rejected, network_error, validation_error, in_flight
	)

	ReservationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barbershop_reservation_duration_seconds",
			Help:    "Время ответа сервера на бронирование",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Бэкенд
	AppointmentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barbershop_appointments_created_total",
			Help: "Созданные записи",
		},
	)

	AppointmentsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_appointments_rejected_total",
			Help: "Отклоненные записи по коду ошибки",
		},
		[]string{"code"},
	)

	AppointmentsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barbershop_appointments_cancelled_total",
			Help: "Отмененные записи",
		},
	)

	AppointmentsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barbershop_appointments_purged_total",
			Help: "Удаленные устаревшие записи",
		},
	)

	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barbershop_queue_size",
			Help: "Клиенты в очереди обслуживания",
		},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_reminders_sent_total",
			Help: "Отправленные напоминания",
		},
		[]string{"status"},
	)

	// Метрики базы данных
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_database_operations_total",
			Help: "Операции с базой данных",
		},
		[]string{"operation", "status"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barbershop_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barbershop_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_errors_total",
			Help: "Ошибки по компонентам",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barbershop_http_requests_total",
			Help: "HTTP запросы",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barbershop_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAvailabilityFetch записывает результат загрузки доступности
func RecordAvailabilityFetch(result string) {
	AvailabilityFetches.WithLabelValues(result).Inc()
}

// RecordSlotDecision записывает классификацию слота
func RecordSlotDecision(status, reason string) {
	SlotDecisions.WithLabelValues(status, reason).Inc()
}

// RecordReservation записывает исход отправки бронирования
func RecordReservation(outcome string) {
	ReservationSubmissions.WithLabelValues(outcome).Inc()
}

// RecordAppointmentRejected записывает отказ бэкенда
func RecordAppointmentRejected(code string) {
	AppointmentsRejected.WithLabelValues(code).Inc()
}

// RecordReminder записывает отправку напоминания
func RecordReminder(status string) {
	RemindersSent.WithLabelValues(status).Inc()
}

// RecordDatabaseOperation записывает метрику операции с БД
func RecordDatabaseOperation(operation, status string) {
	DatabaseOperations.WithLabelValues(operation, status).Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// SetQueueSize устанавливает размер очереди
func SetQueueSize(size int) {
	QueueSize.Set(float64(size))
}
