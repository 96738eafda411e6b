package models

import (
	"fmt"
	"time"

	"github.com/region23/barbershop/internal/calendar"
)

// AppointmentStatus состояние записи
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCheckedIn AppointmentStatus = "checked_in"
	StatusServed    AppointmentStatus = "served"
)

// Appointment представляет запись клиента на слот
type Appointment struct {
	ID            string                `json:"id" db:"id"`
	Date          calendar.CalendarDate `json:"data" db:"date"`
	Time          calendar.TimeSlot     `json:"horario" db:"time"`
	CustomerName  string                `json:"nome" db:"customer_name"`
	CustomerPhone string                `json:"telefone" db:"customer_phone"`
	Notes         string                `json:"observacoes,omitempty" db:"notes"`
	Status        AppointmentStatus     `json:"status" db:"status"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at" db:"updated_at"`
}

// Key возвращает ключ записи в форме YYYY-MM-DD-HH:MM
func (a *Appointment) Key() string {
	return AppointmentKey(a.Date, a.Time)
}

// AppointmentKey собирает ключ записи из даты и времени
func AppointmentKey(date calendar.CalendarDate, t calendar.TimeSlot) string {
	return string(date) + "-" + string(t)
}

// ParseKey разбирает ключ YYYY-MM-DD-HH:MM
func ParseKey(key string) (calendar.CalendarDate, calendar.TimeSlot, error) {
	if len(key) != len("2006-01-02-15:04") || key[10] != '-' {
		return "", "", fmt.Errorf("invalid appointment key %q", key)
	}

	date, err := calendar.ParseDate(key[:10])
	if err != nil {
		return "", "", fmt.Errorf("invalid appointment key %q: %w", key, err)
	}
	t, err := calendar.ParseTimeSlot(key[11:])
	if err != nil {
		return "", "", fmt.Errorf("invalid appointment key %q: %w", key, err)
	}
	return date, t, nil
}

// QueueEntry клиент в очереди обслуживания
type QueueEntry struct {
	ID             string    `json:"id" db:"id"`
	AppointmentID  string    `json:"appointment_id" db:"appointment_id"`
	AppointmentKey string    `json:"horario_agendado" db:"appointment_key"`
	CustomerName   string    `json:"nome" db:"customer_name"`
	CustomerPhone  string    `json:"telefone" db:"customer_phone"`
	Position       int64     `json:"posicao" db:"position"`
	ArrivedAt      time.Time `json:"chegada" db:"arrived_at"`
}

// Reminder отложенное напоминание о записи в чат
type Reminder struct {
	ID             string    `json:"id" db:"id"`
	AppointmentKey string    `json:"appointment_key" db:"appointment_key"`
	ChatID         int64     `json:"chat_id" db:"chat_id"`
	RemindAt       time.Time `json:"remind_at" db:"remind_at"`
	Sent           bool      `json:"sent" db:"sent"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// GetFormattedDateTime возвращает дату в порядке день/месяц/год и время
func (a *Appointment) GetFormattedDateTime() string {
	return calendar.FormatDisplay(a.Date) + " " + string(a.Time)
}
