package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/region23/barbershop/internal/bot/keyboard"
	botservice "github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
)

// Ответы на нажатия кнопок
const (
	AnswerInvalidChoice = "Opção inválida"
	AnswerSlotBlocked   = "Horário indisponível"
	AnswerExpired       = "Esta opção expirou, escolha novamente"
	AnswerSending       = "Enviando..."
)

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	service *botservice.Service
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(service *botservice.Service) *CallbackHandler {
	return &CallbackHandler{service: service}
}

// ChatID определяет чат callback query. Для недоступного сообщения
// используется отправитель.
func ChatID(cb *models.CallbackQuery) int64 {
	if cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}
	if cb.Message.InaccessibleMessage != nil {
		return cb.Message.InaccessibleMessage.Chat.ID
	}
	return cb.From.ID
}

// Handle обрабатывает callback query
func (h *CallbackHandler) Handle(ctx context.Context, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	chatID := ChatID(cb)

	switch data := cb.Data; {
	case data == keyboard.ActionNoop:
		h.answer(ctx, cb, AnswerSlotBlocked)
	case data == keyboard.ActionDates:
		h.answer(ctx, cb, "")
		if err := h.service.ShowDates(ctx, chatID); err != nil {
			h.logError("Failed to send date selection", chatID, err)
		}
	case data == keyboard.ActionConfirm:
		h.handleConfirm(ctx, cb, chatID)
	case data == keyboard.ActionCancel:
		h.handleCancel(ctx, cb, chatID)
	default:
		if date, ok := keyboard.ParseDateCallback(data); ok {
			h.handleDateSelection(ctx, cb, chatID, date)
			return
		}
		if date, t, ok := keyboard.ParseSlotCallback(data); ok {
			h.handleSlotSelection(ctx, cb, chatID, date, t)
			return
		}
		// Неизвестный callback
		h.answer(ctx, cb, AnswerInvalidChoice)
	}
}

func (h *CallbackHandler) handleDateSelection(ctx context.Context, cb *models.CallbackQuery, chatID int64, date calendar.CalendarDate) {
	// Отвечаем сразу, чтобы убрать индикатор загрузки
	h.answer(ctx, cb, "")

	// Результат отображают подписчики событий виджета
	_, err := h.service.Session(chatID).Widget.ChangeDate(ctx, date)
	switch {
	case err == nil, errors.Is(err, errors.ErrStaleResponse):
	case errors.Is(err, errors.ErrDateOutOfWindow):
		if sendErr := h.service.SendSimpleMessage(ctx, chatID, AnswerExpired); sendErr != nil {
			h.logError("Failed to send expired notice", chatID, sendErr)
		}
	default:
		h.service.Logger().Debug("Date change failed",
			logger.Int64("chat_id", chatID),
			logger.String("date", string(date)),
			logger.Error(err))
	}
}

func (h *CallbackHandler) handleSlotSelection(ctx context.Context, cb *models.CallbackQuery, chatID int64, date calendar.CalendarDate, t calendar.TimeSlot) {
	w := h.service.Session(chatID).Widget
	if err := w.Select(date, t); err != nil {
		h.service.Logger().Debug("Slot not selectable",
			logger.Int64("chat_id", chatID),
			logger.String("date", string(date)),
			logger.String("time", string(t)),
			logger.Error(err))
		h.answer(ctx, cb, AnswerExpired)
		return
	}
	h.answer(ctx, cb, "")
}

func (h *CallbackHandler) handleConfirm(ctx context.Context, cb *models.CallbackQuery, chatID int64) {
	session := h.service.Session(chatID)
	w := session.Widget

	slot, open := w.Selected()
	if !open || session.Step() != botservice.StepConfirm {
		h.answer(ctx, cb, AnswerExpired)
		return
	}
	h.answer(ctx, cb, AnswerSending)

	// Уведомления об исходе отправляет сам виджет
	if _, err := w.Submit(ctx, w.Form()); err != nil {
		h.service.Logger().Info("Reservation not completed",
			logger.Int64("chat_id", chatID),
			logger.Error(err))
		return
	}

	if err := h.service.ScheduleReminder(ctx, chatID, slot); err != nil {
		h.logError("Failed to schedule reminder", chatID, err)
	}
}

func (h *CallbackHandler) handleCancel(ctx context.Context, cb *models.CallbackQuery, chatID int64) {
	session := h.service.Session(chatID)
	session.Widget.Cancel()
	session.SetStep(botservice.StepNone)

	h.answer(ctx, cb, "")
	if err := h.service.SendSimpleMessage(ctx, chatID, botservice.MessageCancelled); err != nil {
		h.logError("Failed to send cancel message", chatID, err)
	}
}

func (h *CallbackHandler) answer(ctx context.Context, cb *models.CallbackQuery, text string) {
	if err := h.service.AnswerCallbackQuery(ctx, cb.ID, text); err != nil {
		h.service.Logger().Warn("Failed to answer callback query",
			logger.String("callback_id", cb.ID), logger.Error(err))
	}
}

func (h *CallbackHandler) logError(msg string, chatID int64, err error) {
	h.service.Logger().Error(msg, logger.Int64("chat_id", chatID), logger.Error(err))
}
