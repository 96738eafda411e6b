package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/config"
	"github.com/region23/barbershop/internal/middleware"
	"github.com/region23/barbershop/internal/scheduler"
	"github.com/region23/barbershop/internal/storage"
	"github.com/region23/barbershop/pkg/logger"
)

// Version версия сервиса в ответе health check
const Version = "1.0.0"

// Server представляет HTTP сервер записи с middleware
type Server struct {
	httpServer     *http.Server
	config         *config.Config
	logger         *logger.Logger
	store          storage.Storage
	schedule       *Schedule
	clock          calendar.Clock
	rateLimiter    *middleware.RateLimiter
	securityLogger *SecurityLogger
	healthChecker  *HealthChecker
	webhook        http.Handler
	reminders      scheduler.ReminderScheduler
}

// Option настраивает Server
type Option func(*Server)

// WithClock подменяет часы сервера
func WithClock(c calendar.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithWebhook подключает обработчик Telegram webhook на /webhook
func WithWebhook(h http.Handler) Option {
	return func(s *Server) {
		s.webhook = h
	}
}

// WithReminders подключает планировщик напоминаний, таймеры которого
// обновляются при отмене и переносе записей
func WithReminders(r scheduler.ReminderScheduler) Option {
	return func(s *Server) {
		s.reminders = r
	}
}

// New создает новый HTTP сервер
func New(cfg *config.Config, store storage.Storage, log *logger.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log,
		store:  store,
		clock:  calendar.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	schedule, err := NewSchedule(cfg.Schedule, s.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule: %w", err)
	}
	s.schedule = schedule

	s.rateLimiter = middleware.NewRateLimiter(cfg.Server.RequestsPerMinute, time.Minute, log)
	s.securityLogger = NewSecurityLogger(log)
	s.healthChecker = NewHealthChecker(store, schedule, s.clock, Version)

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        s.setupRoutes(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s, nil
}

// Handler возвращает корневой обработчик со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Schedule возвращает расписание сервера
func (s *Server) Schedule() *Schedule {
	return s.schedule
}

// setupRoutes настраивает маршруты с middleware
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.PrometheusMiddleware)

	limited := middleware.HTTPRateLimitMiddleware(s.rateLimiter)

	// Публичное API виджета
	router.Handle("/api/horarios/{date}", limited(http.HandlerFunc(s.handleAvailability))).Methods(http.MethodGet)
	router.Handle("/agendar", limited(http.HandlerFunc(s.handleReserve))).Methods(http.MethodPost)

	// Панель администратора
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminAuditMiddleware)
	admin.HandleFunc("/agendamentos", s.handleAdminList).Methods(http.MethodGet)
	admin.HandleFunc("/checkin/{chave}", s.handleCheckIn).Methods(http.MethodPost)
	admin.HandleFunc("/atender", s.handleServeNext).Methods(http.MethodPost)
	admin.HandleFunc("/cancelar/{chave}", s.handleCancel).Methods(http.MethodPost)
	admin.HandleFunc("/editar/{chave}", s.handleEdit).Methods(http.MethodPost)

	// Служебные маршруты
	router.HandleFunc("/health", s.healthChecker.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.webhook != nil {
		router.Handle("/webhook", s.webhookAuthMiddleware(s.webhook)).Methods(http.MethodPost)
	}

	return s.applyMiddleware(router)
}

// applyMiddleware применяет middleware в правильном порядке
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Применяем middleware в обратном порядке (последний применяется первым)
	h := handler

	// 4. Ограничение размера и Content-Type тела
	h = s.requestValidationMiddleware(h)

	// 3. Логирование запросов
	h = s.loggingMiddleware(h)

	// 2. CORS для браузерного виджета
	h = handlers.CORS(
		handlers.AllowedOrigins(s.config.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)

	// 1. Security headers и восстановление после паники
	h = s.securityHeadersMiddleware(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)

	return h
}

// Start запускает сервер и блокируется до отмены контекста
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		logger.String("addr", s.httpServer.Addr),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.securityLogger.LogSystemEvent("server_shutdown", "info", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}

// recoveryLogger передает панику обработчика в логгер сервиса
type recoveryLogger struct {
	log *logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("Recovered from panic in HTTP handler", logger.String("panic", fmt.Sprint(v...)))
}
