package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/pkg/logger"
)

// DefaultHandler обрабатывает неопознанные сообщения
type DefaultHandler struct {
	service *botservice.Service
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(service *botservice.Service) *DefaultHandler {
	return &DefaultHandler{service: service}
}

// Handle напоминает, как пользоваться ботом
func (h *DefaultHandler) Handle(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if err := h.service.SendSimpleMessage(ctx, chatID, botservice.MessageHelp); err != nil {
		h.service.Logger().Error("Failed to send default message",
			logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
