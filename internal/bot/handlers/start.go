package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/pkg/logger"
)

// StartHandler обрабатывает команды /start, /agendar и /cancelar
type StartHandler struct {
	service *botservice.Service
}

// NewStartHandler создает новый обработчик команд
func NewStartHandler(service *botservice.Service) *StartHandler {
	return &StartHandler{service: service}
}

// HandleStart приветствует пользователя и сразу предлагает даты
func (h *StartHandler) HandleStart(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID

	if err := h.service.SendSimpleMessage(ctx, chatID, botservice.MessageWelcome); err != nil {
		h.service.Logger().Error("Failed to send welcome message",
			logger.Int64("chat_id", chatID), logger.Error(err))
		return
	}
	h.showDates(ctx, chatID)
}

// HandleBook начинает запись заново: закрывает открытое окно и
// показывает даты
func (h *StartHandler) HandleBook(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID
	h.service.Session(chatID).Widget.Cancel()
	h.showDates(ctx, chatID)
}

// HandleCancel закрывает окно записи
func (h *StartHandler) HandleCancel(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID
	session := h.service.Session(chatID)

	message := botservice.MessageNothingOpen
	if session.Step() != botservice.StepNone {
		message = botservice.MessageCancelled
	}
	session.Widget.Cancel()
	session.SetStep(botservice.StepNone)

	if err := h.service.SendSimpleMessage(ctx, chatID, message); err != nil {
		h.service.Logger().Error("Failed to send cancel message",
			logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

func (h *StartHandler) showDates(ctx context.Context, chatID int64) {
	if err := h.service.ShowDates(ctx, chatID); err != nil {
		h.service.Logger().Error("Failed to send date selection",
			logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
