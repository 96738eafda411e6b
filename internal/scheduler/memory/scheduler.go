package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/scheduler"
	"github.com/region23/barbershop/internal/storage"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/pkg/logger"
	"github.com/region23/barbershop/pkg/metrics"
)

// MemoryScheduler реализует планировщик напоминаний на таймерах в памяти.
// Сами напоминания хранятся в ReminderRepository, поэтому после рестарта
// их восстанавливает ReschedulePending.
type MemoryScheduler struct {
	timers   map[string]*timerEntry
	mu       sync.Mutex
	sender   scheduler.ReminderSender
	store    storage.ReminderRepository
	clock    calendar.Clock
	logger   *logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	stopped  bool
	stopOnce sync.Once
}

type timerEntry struct {
	timer *time.Timer
}

// Option настраивает MemoryScheduler
type Option func(*MemoryScheduler)

// WithClock подменяет часы, от которых отсчитывается задержка
func WithClock(c calendar.Clock) Option {
	return func(s *MemoryScheduler) {
		s.clock = c
	}
}

// NewMemoryScheduler создает новый планировщик в памяти
func NewMemoryScheduler(sender scheduler.ReminderSender, store storage.ReminderRepository, log *logger.Logger, opts ...Option) *MemoryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = logger.Nop()
	}

	s := &MemoryScheduler{
		timers: make(map[string]*timerEntry),
		sender: sender,
		store:  store,
		clock:  calendar.SystemClock{},
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ scheduler.ReminderScheduler = (*MemoryScheduler)(nil)

// Schedule планирует напоминание. Повторный вызов с тем же ID
// заменяет таймер, прошедшее время отправляет сразу.
func (s *MemoryScheduler) Schedule(ctx context.Context, r *models.Reminder) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("reminder must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	s.stopLocked(r.ID)

	reminder := *r
	delay := reminder.RemindAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	entry := &timerEntry{}
	s.inflight.Add(1)
	entry.timer = time.AfterFunc(delay, func() {
		defer s.inflight.Done()
		s.handleReminder(entry, &reminder)
	})
	s.timers[reminder.ID] = entry

	s.logger.Debug("Reminder scheduled",
		logger.String("reminder_id", reminder.ID),
		logger.String("appointment", reminder.AppointmentKey),
		logger.Duration("delay", delay))
	return nil
}

// stopLocked останавливает таймер по ID; вызывается под s.mu
func (s *MemoryScheduler) stopLocked(id string) {
	entry, exists := s.timers[id]
	if !exists {
		return
	}
	if entry.timer.Stop() {
		// колбэк не запустится, поэтому Done за него
		s.inflight.Done()
	}
	delete(s.timers, id)
}

// Cancel отменяет запланированное напоминание
func (s *MemoryScheduler) Cancel(ctx context.Context, reminderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(reminderID)
	return nil
}

// ReschedulePending загружает неотправленные напоминания и планирует их заново
func (s *MemoryScheduler) ReschedulePending(ctx context.Context) error {
	pending, err := s.store.GetPendingReminders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending reminders: %w", err)
	}

	for _, r := range pending {
		if err := s.Schedule(ctx, r); err != nil {
			return err
		}
	}

	s.logger.Info("Pending reminders rescheduled", logger.Int("count", len(pending)))
	return nil
}

// Stop останавливает все таймеры и дожидается начатых отправок
func (s *MemoryScheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		for id := range s.timers {
			s.stopLocked(id)
		}
		s.mu.Unlock()

		s.cancel()
		s.inflight.Wait()
	})

	return nil
}

// handleReminder отправляет напоминание и помечает его отправленным
func (s *MemoryScheduler) handleReminder(entry *timerEntry, r *models.Reminder) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timers[r.ID] == entry {
		delete(s.timers, r.ID)
	}
	s.mu.Unlock()

	if err := s.sender.SendReminder(s.ctx, r); err != nil {
		metrics.RecordReminder("failed")
		s.logger.Error("Failed to send reminder",
			logger.String("reminder_id", r.ID),
			logger.Int64("chat_id", r.ChatID),
			logger.Error(err))
		return
	}
	metrics.RecordReminder("sent")

	if err := s.store.MarkReminderSent(s.ctx, r.ID); err != nil {
		s.logger.Error("Failed to mark reminder as sent",
			logger.String("reminder_id", r.ID),
			logger.Error(err))
	}
}

// ActiveCount возвращает количество активных таймеров
func (s *MemoryScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}
