package service

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
)

// ReminderNotifier отправляет напоминания о записи в чат.
// Реализует scheduler.ReminderSender.
type ReminderNotifier struct {
	messenger Messenger
	logger    *logger.Logger
}

// NewReminderNotifier создает отправителя напоминаний
func NewReminderNotifier(messenger Messenger, log *logger.Logger) *ReminderNotifier {
	return &ReminderNotifier{messenger: messenger, logger: log}
}

// ReminderText текст напоминания для ключа записи
func ReminderText(appointmentKey string) (string, error) {
	date, t, err := models.ParseKey(appointmentKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Lembrete: seu horário na barbearia é %s às %s.", calendar.FormatDisplay(date), t), nil
}

// SendReminder отправляет напоминание
func (n *ReminderNotifier) SendReminder(ctx context.Context, r *models.Reminder) error {
	text, err := ReminderText(r.AppointmentKey)
	if err != nil {
		return errors.ErrValidation.WithError(err).WithContext(map[string]interface{}{
			"reminder_id": r.ID,
		})
	}

	if _, err := n.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: r.ChatID,
		Text:   text,
	}); err != nil {
		return errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"chat_id":     r.ChatID,
			"reminder_id": r.ID,
		})
	}

	n.logger.Info("Reminder delivered",
		logger.Int64("chat_id", r.ChatID),
		logger.String("appointment", r.AppointmentKey))
	return nil
}
