package storage

import (
	"context"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage/models"
)

// AppointmentRepository определяет интерфейс для работы с записями
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, date calendar.CalendarDate, t calendar.TimeSlot) (*models.Appointment, error)
	OccupiedTimes(ctx context.Context, date calendar.CalendarDate) ([]calendar.TimeSlot, error)
	ListAppointments(ctx context.Context) ([]*models.Appointment, error)
	CancelAppointment(ctx context.Context, date calendar.CalendarDate, t calendar.TimeSlot) error
	MoveAppointment(ctx context.Context, fromDate calendar.CalendarDate, fromTime calendar.TimeSlot, toDate calendar.CalendarDate, toTime calendar.TimeSlot) (*models.Appointment, error)
	DeleteAppointmentsBefore(ctx context.Context, date calendar.CalendarDate) (int64, error)
}

// QueueRepository определяет интерфейс очереди обслуживания
type QueueRepository interface {
	CheckIn(ctx context.Context, date calendar.CalendarDate, t calendar.TimeSlot) (*models.QueueEntry, error)
	ListQueue(ctx context.Context) ([]*models.QueueEntry, error)
	DequeueNext(ctx context.Context) (*models.QueueEntry, error)
}

// ReminderRepository определяет интерфейс сохраненных напоминаний
type ReminderRepository interface {
	SaveReminder(ctx context.Context, r *models.Reminder) error
	GetPendingReminders(ctx context.Context) ([]*models.Reminder, error)
	GetAppointmentReminders(ctx context.Context, key string) ([]*models.Reminder, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	AppointmentRepository
	QueueRepository
	ReminderRepository
	Close() error
	Ping(ctx context.Context) error
}
