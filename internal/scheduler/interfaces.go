package scheduler

import (
	"context"

	"github.com/region23/barbershop/internal/storage/models"
)

// ReminderScheduler определяет интерфейс для планирования напоминаний
type ReminderScheduler interface {
	// Schedule планирует напоминание на r.RemindAt
	Schedule(ctx context.Context, r *models.Reminder) error

	// Cancel отменяет запланированное напоминание
	Cancel(ctx context.Context, reminderID string) error

	// ReschedulePending перепланирует неотправленные напоминания из хранилища
	ReschedulePending(ctx context.Context) error

	// Stop останавливает планировщик
	Stop() error
}

// ReminderSender определяет интерфейс для отправки напоминаний
type ReminderSender interface {
	// SendReminder отправляет напоминание о записи в чат
	SendReminder(ctx context.Context, r *models.Reminder) error
}
